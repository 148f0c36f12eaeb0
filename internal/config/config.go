package config

import (
	"trends-go/pkg/collector"
	"trends-go/pkg/docstore"
	"trends-go/pkg/logger"
	"trends-go/pkg/scheduler"
	"trends-go/pkg/task"
	"trends-go/pkg/trends"
	"trends-go/pkg/worker"
)

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Storage   docstore.Config  `mapstructure:"storage"`
	Trends    trends.Config    `mapstructure:"trends"`
	Collector collector.Config `mapstructure:"collector"`
	Tasks     task.Config      `mapstructure:"tasks"`
	Worker    worker.Config    `mapstructure:"worker"`
	Scheduler scheduler.Config `mapstructure:"scheduler"`
	Logger    logger.Config    `mapstructure:"logger"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type Manager interface {
	Load(configPath string) (*Config, error)
	Reload() error
	GetConfig() *Config
}
