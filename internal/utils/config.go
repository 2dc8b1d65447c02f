package utils

import (
	"fmt"
	"strings"
	"time"

	"log-sentinel/internal/model"
)

// Alert channel names.
const (
	ChannelLog     = "log"
	ChannelMetrics = "metrics"
)

// ApplicationConfig configures the HTTP surface.
type ApplicationConfig struct {
	ListenAddr             string `yaml:"listen_addr" json:"listen_addr"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds" json:"shutdown_timeout_seconds"`
}

// SourceConfig configures the tailed log file.
type SourceConfig struct {
	Path              string `yaml:"path" json:"path"`
	PollIntervalMS    int    `yaml:"poll_interval_ms" json:"poll_interval_ms"`
	RetryDelaySeconds int    `yaml:"retry_delay_seconds" json:"retry_delay_seconds"`
	StartAtEnd        *bool  `yaml:"start_at_end" json:"start_at_end"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// FeedConfig sizes the live views.
type FeedConfig struct {
	LogCapacity   int `yaml:"log_capacity" json:"log_capacity"`
	AlertCapacity int `yaml:"alert_capacity" json:"alert_capacity"`
}

// DetectionConfig configures the rule engine.
type DetectionConfig struct {
	RulesFile      string `yaml:"rules_file" json:"rules_file"`
	MaxTrackedKeys int    `yaml:"max_tracked_keys" json:"max_tracked_keys"`
}

// AlertingConfig lists the sinks every alert is sent to.
type AlertingConfig struct {
	Channels []string `yaml:"channels" json:"channels"`
}

// LoggingConfig configures the service logger.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// Config is the complete service configuration.
type Config struct {
	Application ApplicationConfig     `yaml:"application" json:"application"`
	Source      SourceConfig          `yaml:"source" json:"source"`
	Storage     StorageConfig         `yaml:"storage" json:"storage"`
	Feed        FeedConfig            `yaml:"feed" json:"feed"`
	Detection   DetectionConfig       `yaml:"detection" json:"detection"`
	Rules       []model.DetectionRule `yaml:"rules" json:"rules"`
	Alerting    AlertingConfig        `yaml:"alerting" json:"alerting"`
	Logging     LoggingConfig         `yaml:"logging" json:"logging"`
}

// Validate fills defaults and rejects values that cannot work.
func (c *Config) Validate() error {
	if c.Application.ListenAddr == "" {
		c.Application.ListenAddr = ":8081"
	}
	if c.Application.ShutdownTimeoutSeconds <= 0 {
		c.Application.ShutdownTimeoutSeconds = 10
	}

	if c.Source.Path == "" {
		c.Source.Path = "/logs/access.log"
	}
	if c.Source.PollIntervalMS <= 0 {
		c.Source.PollIntervalMS = 500
	}
	if c.Source.RetryDelaySeconds <= 0 {
		c.Source.RetryDelaySeconds = 5
	}
	if c.Source.StartAtEnd == nil {
		startAtEnd := true
		c.Source.StartAtEnd = &startAtEnd
	}

	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.DSN == "" {
			c.Storage.DSN = "/data/siem.db"
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage dsn is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}

	if c.Feed.LogCapacity <= 0 {
		c.Feed.LogCapacity = 1000
	}
	if c.Feed.AlertCapacity <= 0 {
		c.Feed.AlertCapacity = 100
	}

	if c.Detection.MaxTrackedKeys <= 0 {
		c.Detection.MaxTrackedKeys = 10000
	}

	if len(c.Alerting.Channels) == 0 {
		c.Alerting.Channels = []string{ChannelLog, ChannelMetrics}
	}
	for _, ch := range c.Alerting.Channels {
		if ch != ChannelLog && ch != ChannelMetrics {
			return fmt.Errorf("unknown alert channel: %s", ch)
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	return nil
}

// GetDefaultConfig returns the configuration used when no file is present.
func GetDefaultConfig() *Config {
	startAtEnd := true
	return &Config{
		Application: ApplicationConfig{
			ListenAddr:             ":8081",
			ShutdownTimeoutSeconds: 10,
		},
		Source: SourceConfig{
			Path:              "/logs/access.log",
			PollIntervalMS:    500,
			RetryDelaySeconds: 5,
			StartAtEnd:        &startAtEnd,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "/data/siem.db",
		},
		Feed: FeedConfig{
			LogCapacity:   1000,
			AlertCapacity: 100,
		},
		Detection: DetectionConfig{
			MaxTrackedKeys: 10000,
		},
		Alerting: AlertingConfig{
			Channels: []string{ChannelLog, ChannelMetrics},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "json",
		},
	}
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Source.PollIntervalMS) * time.Millisecond
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Source.RetryDelaySeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Application.ShutdownTimeoutSeconds) * time.Second
}

// StartAtEnd reports whether existing content is skipped on first open.
func (c *Config) StartAtEnd() bool {
	return c.Source.StartAtEnd == nil || *c.Source.StartAtEnd
}

// HasChannel reports whether alerts are sent to the named sink.
func (c *Config) HasChannel(name string) bool {
	for _, ch := range c.Alerting.Channels {
		if ch == name {
			return true
		}
	}
	return false
}
