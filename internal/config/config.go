package config

import (
	"fmt"

	"github.com/echoface/pbevents/internal/events"
	"github.com/echoface/pbevents/internal/events/prebid"
	"github.com/echoface/pbevents/pkg/config"
	"github.com/echoface/pbevents/pkg/logger"
)

const ServiceName = "pbevents"

// ServerConfig is the pbevents service configuration.
type ServerConfig struct {
	config.BaseConfig `mapstructure:",squash"`

	// Debug enables the auction debug collector and its endpoint.
	Debug bool `mapstructure:"debug"`

	// Events replaces the built-in event catalog when non-empty.
	Events []EventConfig `mapstructure:"events"`

	// 运行时信息
	RunType    string `mapstructure:"-"`
	ConfigFile string `mapstructure:"-"`
}

// EventConfig declares one recognized event and its optional id path.
type EventConfig struct {
	Name   string `mapstructure:"name"`
	IDPath string `mapstructure:"id_path"`
}

func NewDefaultConfig() *ServerConfig {
	return &ServerConfig{
		BaseConfig: *config.DefaultBaseConfig(),
		RunType:    config.GetRunType(),
	}
}

// LoadConfig 加载配置文件，支持RUN_TYPE环境变量; dir overrides discovery when set
func LoadConfig(dir string) (*ServerConfig, error) {
	cfg := NewDefaultConfig()
	loader := config.NewLoader(ServiceName)
	loader.Dir = dir

	file, err := loader.Load(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s config: %w", ServiceName, err)
	}
	cfg.ConfigFile = file
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with the prod run type.
func (c *ServerConfig) IsProduction() bool {
	return config.IsProduction(c.RunType)
}

// Validate checks the event declarations.
func (c *ServerConfig) Validate() error {
	seen := make(map[string]bool, len(c.Events))
	for i, ev := range c.Events {
		if ev.Name == "" {
			return fmt.Errorf("events[%d]: name is required", i)
		}
		if seen[ev.Name] {
			return fmt.Errorf("events[%d]: duplicate event %q", i, ev.Name)
		}
		seen[ev.Name] = true
	}
	return nil
}

// Catalog builds the event catalog: the configured events, or the built-in
// header-bidding set when none are configured.
func (c *ServerConfig) Catalog() *events.Catalog {
	if len(c.Events) == 0 {
		return prebid.DefaultCatalog()
	}
	names := make([]string, 0, len(c.Events))
	paths := make(map[string]string)
	for _, ev := range c.Events {
		names = append(names, ev.Name)
		if ev.IDPath != "" {
			paths[ev.Name] = ev.IDPath
		}
	}
	return prebid.Catalog(names, paths)
}

// LoggerConfig maps the logging section onto the logger package.
func (c *ServerConfig) LoggerConfig() (logger.LoggerType, logger.Config) {
	lc := logger.DefaultConfig()
	lc.Environment = logger.ParseEnvironment(c.RunType)
	if c.Logging.Level != "" {
		lc.LogLevel = c.Logging.Level
	}
	lc.LogFile = c.Logging.FilePath
	if c.Logging.MaxSize > 0 {
		lc.MaxSize = c.Logging.MaxSize
	}
	if c.Logging.MaxBackups > 0 {
		lc.MaxBackups = c.Logging.MaxBackups
	}
	if c.Logging.MaxAge > 0 {
		lc.MaxAge = c.Logging.MaxAge
	}
	lc.Compress = c.Logging.Compress

	backend := logger.LoggerType(c.Logging.Backend)
	if backend != logger.Zerolog {
		backend = logger.Zap
	}
	return backend, lc
}
