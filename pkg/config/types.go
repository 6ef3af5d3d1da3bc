package config

import (
	"fmt"
	"time"
)

// BaseConfig 基础配置（所有服务通用）
type BaseConfig struct {
	// 服务器配置
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// 日志配置
	Logging LoggingConfig `mapstructure:"logging"`

	// 监控配置
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Backend    string `mapstructure:"backend"` // zap | zerolog
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig Prometheus配置
type PrometheusConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
}

// DefaultBaseConfig 获取默认基础配置
func DefaultBaseConfig() *BaseConfig {
	return &BaseConfig{
		Host:            "localhost",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Logging: LoggingConfig{
			Backend:    "zap",
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
		Monitoring: MonitoringConfig{
			Prometheus: PrometheusConfig{
				Enabled:   true,
				Endpoint:  "/metrics",
				Namespace: "pbevents",
				Subsystem: "bus",
			},
		},
	}
}

// GetAddress 获取服务器地址
func (c *BaseConfig) GetAddress() string {
	host, port := c.Host, c.Port
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}
