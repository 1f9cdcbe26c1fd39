// Package config loads schemaform settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/reoring/schemaform/confidence"
	"github.com/reoring/schemaform/fields"
)

// Config holds all settings.
type Config struct {
	Database   DatabaseConfig        `yaml:"database"`
	Redis      RedisConfig           `yaml:"redis"`
	Autosave   AutosaveConfig        `yaml:"autosave"`
	Confidence confidence.Thresholds `yaml:"confidence"`
	Table      TableConfig           `yaml:"table"`
	Logging    LoggingConfig         `yaml:"logging"`
}

// DatabaseConfig locates the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig locates the event bus.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AutosaveConfig tunes background saves.
type AutosaveConfig struct {
	Debounce string `yaml:"debounce"`
	Timeout  string `yaml:"timeout"`
}

// TableConfig tunes document list columns.
type TableConfig struct {
	ColumnLimit int `yaml:"column_limit"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Database:   DatabaseConfig{Path: "schemaform.db"},
		Redis:      RedisConfig{URL: "redis://localhost:6379/0"},
		Autosave:   AutosaveConfig{Debounce: "1s", Timeout: "30s"},
		Confidence: confidence.DefaultThresholds(),
		Table:      TableConfig{ColumnLimit: fields.DefaultColumnLimit},
		Logging:    LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty or missing path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SCHEMAFORM_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("SCHEMAFORM_REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("SCHEMAFORM_DEBOUNCE"); v != "" {
		c.Autosave.Debounce = v
	}
	if v := os.Getenv("SCHEMAFORM_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// Validate rejects settings the components cannot use.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Autosave.Debounce); err != nil {
		return fmt.Errorf("autosave.debounce: %w", err)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Confidence.Medium > c.Confidence.High {
		return fmt.Errorf("confidence: medium (%v) above high (%v)", c.Confidence.Medium, c.Confidence.High)
	}
	return nil
}

// GetDebounce returns the autosave delay.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Autosave.Debounce)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// GetAutosaveTimeout returns the per-write autosave deadline.
func (c *Config) GetAutosaveTimeout() time.Duration {
	d, err := time.ParseDuration(c.Autosave.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// LogLevel parses Logging.Level.
func (c *Config) LogLevel() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.Logging.Level)
}
