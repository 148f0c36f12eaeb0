package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"trends-go/pkg/batch"
)

// EnvPrefix prefixes every environment override, e.g. TRENDS_STORAGE_DRIVER.
const EnvPrefix = "TRENDS"

type manager struct {
	mu     sync.RWMutex
	config *Config
	viper  *viper.Viper
	loaded bool
}

func NewManager() Manager {
	return &manager{
		viper: viper.New(),
	}
}

// Load reads configPath (YAML) on top of the defaults and environment. An
// empty path uses defaults and environment only.
func (m *manager) Load(configPath string) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setupViper(configPath)
	config, err := m.read(configPath != "")
	if err != nil {
		return nil, err
	}

	m.config = config
	m.loaded = true
	return config, nil
}

func (m *manager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		return fmt.Errorf("config not loaded")
	}

	config, err := m.read(m.viper.ConfigFileUsed() != "")
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	m.config = config
	return nil
}

func (m *manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

func (m *manager) read(fromFile bool) (*Config, error) {
	if fromFile {
		if err := m.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := m.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func (m *manager) setupViper(configPath string) {
	if configPath != "" {
		m.viper.SetConfigFile(configPath)
	}

	m.viper.SetEnvPrefix(EnvPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()
	setDefaults(m.viper)
}

// setDefaults registers every key so environment overrides apply even
// without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "data/trends.db")

	v.SetDefault("trends.base_url", "https://trends.google.com")
	v.SetDefault("trends.hl", "pt-BR")
	v.SetDefault("trends.tz", 360)
	v.SetDefault("trends.timeout", "30s")
	v.SetDefault("trends.connect_retries", 2)
	v.SetDefault("trends.retry_delay", "1s")
	v.SetDefault("trends.user_agent", "Mozilla/5.0 (compatible; trends-go/1.0)")
	v.SetDefault("trends.max_concurrent", 1)

	v.SetDefault("collector.batch_size", 5)
	v.SetDefault("collector.interval", "1s")
	v.SetDefault("collector.backoff", "10s")

	v.SetDefault("tasks.default_geo", "BR")
	v.SetDefault("tasks.interest_window_days", 7)
	v.SetDefault("tasks.rising_timeframe", "now 1-H")

	v.SetDefault("worker.max_workers", 2)
	v.SetDefault("worker.queue_size", 32)
	v.SetDefault("worker.task_timeout", "2h")
	v.SetDefault("worker.shutdown_timeout", "30s")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.daily_interest", "0 6 * * *")
	v.SetDefault("scheduler.hourly_rising", "5 * * * *")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.time_format", "")
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Storage.Driver {
	case "memory":
	case "sqlite", "bolt":
		if config.Storage.Path == "" {
			return fmt.Errorf("storage.path cannot be empty for driver %s", config.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", config.Storage.Driver)
	}

	if config.Trends.BaseURL == "" {
		return fmt.Errorf("trends.base_url cannot be empty")
	}
	if config.Trends.MaxConcurrent <= 0 {
		return fmt.Errorf("trends.max_concurrent must be positive")
	}

	if config.Collector.BatchSize <= 0 || config.Collector.BatchSize > batch.TermLimit {
		return fmt.Errorf("collector.batch_size must be between 1 and %d, got %d", batch.TermLimit, config.Collector.BatchSize)
	}
	if config.Collector.Interval < 0 || config.Collector.Backoff < 0 {
		return fmt.Errorf("collector pauses cannot be negative")
	}

	if config.Tasks.InterestWindowDays <= 0 {
		return fmt.Errorf("tasks.interest_window_days must be positive")
	}

	if config.Worker.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive")
	}

	if config.Worker.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive")
	}

	if config.Scheduler.Enabled && config.Scheduler.DailyInterest == "" && config.Scheduler.HourlyRising == "" {
		return fmt.Errorf("scheduler is enabled but no schedule is set")
	}

	return nil
}
