package config

import (
	"os"
	"time"

	"github.com/ccollicutt/slalog/pkg/sla"
)

// Default values for configuration.
const (
	DefaultTimezone       = "UTC"
	DefaultDriver         = "sqlite"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultWebhookTimeout = 10 * time.Second
)

// Environment variable names.
const (
	EnvTimezone   = "SLALOG_TIMEZONE"
	EnvStorageDSN = "SLALOG_STORAGE_DSN"
	EnvLogLevel   = "SLALOG_LOG_LEVEL"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timezone:      DefaultTimezone,
		BusinessHours: map[string]string{},
		SLARules:      []SLARuleConfig{},
		Evaluation: EvaluationConfig{
			Fallback:       sla.DefaultFallback,
			PauseKeyword:   sla.DefaultPauseKeyword,
			MaxSegmentSpan: sla.DefaultMaxSegmentSpan,
		},
		Storage: StorageConfig{
			Driver: DefaultDriver,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	if tz := os.Getenv(EnvTimezone); tz != "" {
		c.Timezone = tz
	}
	if dsn := os.Getenv(EnvStorageDSN); dsn != "" {
		c.Storage.DSN = dsn
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = level
	}
}
