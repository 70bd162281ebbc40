package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Ingest    IngestConfig    `toml:"ingest"`
	Storage   StorageConfig   `toml:"storage"`
	Rules     RulesConfig     `toml:"rules"`
	Retention RetentionConfig `toml:"retention"`
	Logging   LoggingConfig   `toml:"logging"`
}

// IngestConfig selects the single ingestion backend for this process and the polling cadence
type IngestConfig struct {
	Backend    string        `toml:"backend" validate:"required,oneof=auto windows syslog macos"` // "auto" resolves by runtime.GOOS
	Interval   string        `toml:"interval" validate:"required,duration"`                       // e.g., "10s" - sleep between cycles
	BatchLimit int           `toml:"batch_limit" validate:"min=1"`                                // Max records per channel per cycle
	Windows    WindowsConfig `toml:"windows"`
	Syslog     SyslogConfig  `toml:"syslog"`
	MacOS      MacOSConfig   `toml:"macos"`
}

// WindowsConfig holds Windows Event Log settings
type WindowsConfig struct {
	Channels      []string `toml:"channels" validate:"dive,required"`
	DefaultWindow string   `toml:"default_window" validate:"window"` // "midnight" or a duration
}

// SyslogConfig holds Linux syslog file settings
type SyslogConfig struct {
	Path          string `toml:"path"`
	DefaultWindow string `toml:"default_window" validate:"window"`
}

// MacOSConfig holds macOS Unified Log export settings
type MacOSConfig struct {
	Command       string `toml:"command"`   // Export binary, normally "log"
	Predicate     string `toml:"predicate"` // Passed to --predicate
	DefaultWindow string `toml:"default_window" validate:"window"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

// RulesConfig points at an optional TOML file of alert rules seeded into storage at startup
type RulesConfig struct {
	File string `toml:"file"`
}

// RetentionConfig controls the scheduled pruning of old records and alerts
type RetentionConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron format with seconds
	MaxAge   string `toml:"max_age" validate:"omitempty,duration"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"` // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`                                        // "stdout", "file"
	TimeFormat string   `toml:"time_format"`                                   // Time format for logs (default: "15:04:05.000")
	File       string   `toml:"file"`                                          // Log file path, empty = logs/logalert.log beside the executable
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			Backend:    "auto",
			Interval:   "10s",
			BatchLimit: 500,
			Windows: WindowsConfig{
				Channels:      []string{"Application", "System", "Security"},
				DefaultWindow: "midnight", // Event logs start from local midnight when the store is empty
			},
			Syslog: SyslogConfig{
				Path:          "/var/log/syslog",
				DefaultWindow: "1h",
			},
			MacOS: MacOSConfig{
				Command:       "log",
				Predicate:     "eventType == logEvent",
				DefaultWindow: "1h",
			},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Rules: RulesConfig{
			File: "./rules.toml",
		},
		Retention: RetentionConfig{
			Enabled:  false,
			Schedule: "0 0 3 * * *", // 03:00 daily
			MaxAge:   "720h",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards via ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Ingest configuration
	if backend := os.Getenv("LOGALERT_BACKEND"); backend != "" {
		config.Ingest.Backend = backend
	}
	if interval := os.Getenv("LOGALERT_INTERVAL"); interval != "" {
		config.Ingest.Interval = interval
	}
	if limit := os.Getenv("LOGALERT_BATCH_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.Ingest.BatchLimit = l
		}
	}
	if channels := os.Getenv("LOGALERT_WINDOWS_CHANNELS"); channels != "" {
		if list := splitList(channels); len(list) > 0 {
			config.Ingest.Windows.Channels = list
		}
	}
	if path := os.Getenv("LOGALERT_SYSLOG_PATH"); path != "" {
		config.Ingest.Syslog.Path = path
	}
	if command := os.Getenv("LOGALERT_MACOS_COMMAND"); command != "" {
		config.Ingest.MacOS.Command = command
	}

	// Storage configuration
	if badgerPath := os.Getenv("LOGALERT_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Rules configuration
	if rulesFile := os.Getenv("LOGALERT_RULES_FILE"); rulesFile != "" {
		config.Rules.File = rulesFile
	}

	// Retention configuration
	if enabled := os.Getenv("LOGALERT_RETENTION_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Retention.Enabled = e
		}
	}
	if maxAge := os.Getenv("LOGALERT_RETENTION_MAX_AGE"); maxAge != "" {
		config.Retention.MaxAge = maxAge
	}

	// Logging configuration
	if level := os.Getenv("LOGALERT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("LOGALERT_LOG_OUTPUT"); output != "" {
		if outputs := splitList(output); len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, backend string) {
	if backend != "" {
		config.Ingest.Backend = backend
	}
}

// Validate checks the configuration against its struct tags
func Validate(config *Config) error {
	v := validator.New()
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("window", func(fl validator.FieldLevel) bool {
		return IsValidWindow(fl.Field().String())
	})

	if err := v.Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if config.Retention.Enabled {
		if config.Retention.Schedule == "" {
			return fmt.Errorf("invalid configuration: retention.schedule is required when retention is enabled")
		}
		if config.Retention.MaxAgeDuration() <= 0 {
			return fmt.Errorf("invalid configuration: retention.max_age must be a positive duration when retention is enabled")
		}
	}
	return nil
}

// IsValidWindow reports whether s is "midnight" or a positive Go duration
func IsValidWindow(s string) bool {
	if strings.EqualFold(strings.TrimSpace(s), "midnight") {
		return true
	}
	d, err := time.ParseDuration(s)
	return err == nil && d > 0
}

// PollInterval returns the parsed ingest interval, falling back to 10s
func (c IngestConfig) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// MaxAgeDuration returns the parsed retention age, zero when unset or invalid
func (c RetentionConfig) MaxAgeDuration() time.Duration {
	d, err := time.ParseDuration(c.MaxAge)
	if err != nil {
		return 0
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
