package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewManager().Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path == "" {
		t.Errorf("Unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Collector.BatchSize != 5 || cfg.Collector.Interval != time.Second || cfg.Collector.Backoff != 10*time.Second {
		t.Errorf("Unexpected collector defaults: %+v", cfg.Collector)
	}
	if cfg.Tasks.DefaultGeo != "BR" || cfg.Tasks.RisingTimeframe != "now 1-H" || cfg.Tasks.InterestWindowDays != 7 {
		t.Errorf("Unexpected task defaults: %+v", cfg.Tasks)
	}
	if cfg.Trends.HL != "pt-BR" || cfg.Trends.TZ != 360 || cfg.Trends.Timeout != 30*time.Second {
		t.Errorf("Unexpected trends defaults: %+v", cfg.Trends)
	}
	if cfg.Worker.TaskTimeout != 2*time.Hour {
		t.Errorf("Unexpected worker task timeout: %v", cfg.Worker.TaskTimeout)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
storage:
  driver: bolt
  path: /tmp/trends.bolt
collector:
  interval: 2s
scheduler:
  enabled: true
  daily_interest: "0 7 * * *"
`)
	t.Setenv("TRENDS_TASKS_DEFAULT_GEO", "PT")
	t.Setenv("TRENDS_SERVER_PORT", "9100")

	cfg, err := NewManager().Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Expected env to override port, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "bolt" || cfg.Storage.Path != "/tmp/trends.bolt" {
		t.Errorf("Unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Collector.Interval != 2*time.Second || cfg.Collector.Backoff != 10*time.Second {
		t.Errorf("Unexpected collector: %+v", cfg.Collector)
	}
	if cfg.Tasks.DefaultGeo != "PT" {
		t.Errorf("Expected env geo PT, got %q", cfg.Tasks.DefaultGeo)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.DailyInterest != "0 7 * * *" {
		t.Errorf("Unexpected scheduler: %+v", cfg.Scheduler)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad port":          "server:\n  port: 70000\n",
		"bad driver":        "storage:\n  driver: mongo\n",
		"empty path":        "storage:\n  driver: sqlite\n  path: \"\"\n",
		"big batch":         "collector:\n  batch_size: 6\n",
		"zero window":       "tasks:\n  interest_window_days: 0\n",
		"no schedules":      "scheduler:\n  enabled: true\n  daily_interest: \"\"\n  hourly_rising: \"\"\n",
		"no workers":        "worker:\n  max_workers: 0\n",
		"no upstream slots": "trends:\n  max_concurrent: 0\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewManager().Load(writeConfig(t, content)); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := NewManager().Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestReload(t *testing.T) {
	m := NewManager()
	if err := m.Reload(); err == nil {
		t.Error("Expected Reload before Load to fail")
	}

	path := writeConfig(t, "server:\n  port: 9000\n")
	if _, err := m.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("server:\n  port: 9001\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := m.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if got := m.GetConfig().Server.Port; got != 9001 {
		t.Errorf("Expected reloaded port 9001, got %d", got)
	}
}
