package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogger_JSONFields(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "json", "")

	log.WithField("component", "collector").
		WithError(errors.New("boom")).
		Warn("batch skipped")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}

	if entry["component"] != "collector" {
		t.Errorf("Expected component field, got %v", entry["component"])
	}
	if entry["error"] != "boom" {
		t.Errorf("Expected error field, got %v", entry["error"])
	}
	if entry["level"] != "warn" {
		t.Errorf("Expected warn level, got %v", entry["level"])
	}
}

func TestLogger_WithRun(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	NewWithWriter(&buf, "json", "").WithRun("run-42", "rising_queries").Info("Run started")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["run_id"] != "run-42" || entry["task"] != "rising_queries" {
		t.Errorf("Expected run fields, got %v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, test := range tests {
		if got := parseLevel(test.input); got != test.expected {
			t.Errorf("parseLevel(%q) = %v, expected %v", test.input, got, test.expected)
		}
	}
}

func TestProgressReporter_Counts(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	pr := NewProgressReporter(NewWithWriter(&buf, "json", ""), 4, "interest collection")

	pr.Advance(2, 1)
	pr.Advance(2, 2)

	attempted, persisted, total := pr.Snapshot()
	if attempted != 4 || persisted != 3 || total != 4 {
		t.Errorf("Unexpected snapshot: attempted=%d persisted=%d total=%d", attempted, persisted, total)
	}

	if !strings.Contains(buf.String(), "interest collection: 4/4") {
		t.Errorf("Expected completion report in log output, got %q", buf.String())
	}
}
