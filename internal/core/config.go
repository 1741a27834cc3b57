// Package core contains configuration loading and validation for
// swarmwatch. Configuration comes from a .swarmwatch.yaml file with sane
// defaults when the file is absent, plus per-session override sections.
package core

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the observability settings for a session.
type Config struct {
	// EventsDir is where session event logs and message files live.
	EventsDir string
	// BufferSize is the capture buffer size that triggers a flush.
	BufferSize int
	// FlushInterval is the periodic flush cadence.
	FlushInterval time.Duration
	// Buffering toggles asynchronous buffered capture.
	Buffering bool
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		EventsDir:     "./swarm-events",
		BufferSize:    100,
		FlushInterval: time.Second,
		Buffering:     true,
	}
}

// Validate rejects configurations that cannot drive a capture.
func (c *Config) Validate() error {
	if c.EventsDir == "" {
		return fmt.Errorf("validating config: events dir must not be empty")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("validating config: buffer size must be positive, got %d", c.BufferSize)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("validating config: flush interval must be positive, got %s", c.FlushInterval)
	}
	return nil
}

// ConfigManager loads configuration from the base path, with per-session
// overrides layered on top of the global settings.
type ConfigManager interface {
	Load() (*Config, error)
	SessionConfig(sessionID string) (*Config, error)
}

// viperConfigManager implements ConfigManager using Viper for reading the
// .swarmwatch.yaml file.
type viperConfigManager struct {
	basePath string
}

// NewConfigManager creates a ConfigManager that reads configuration
// relative to basePath.
func NewConfigManager(basePath string) ConfigManager {
	return &viperConfigManager{basePath: basePath}
}

func (cm *viperConfigManager) reader() (*viper.Viper, error) {
	defaults := DefaultConfig()

	v := viper.New()
	v.SetConfigName(".swarmwatch")
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	// Set Viper defaults so missing keys fall back gracefully.
	v.SetDefault("events.dir", defaults.EventsDir)
	v.SetDefault("capture.buffer_size", defaults.BufferSize)
	v.SetDefault("capture.flush_interval_ms", int(defaults.FlushInterval/time.Millisecond))
	v.SetDefault("capture.buffering", defaults.Buffering)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file found: defaults apply.
			return v, nil
		}
		return nil, fmt.Errorf("reading .swarmwatch.yaml: %w", err)
	}
	return v, nil
}

func configFromViper(v *viper.Viper) *Config {
	return &Config{
		EventsDir:     v.GetString("events.dir"),
		BufferSize:    v.GetInt("capture.buffer_size"),
		FlushInterval: time.Duration(v.GetInt("capture.flush_interval_ms")) * time.Millisecond,
		Buffering:     v.GetBool("capture.buffering"),
	}
}

// Load reads the global configuration, returning defaults when no config
// file exists.
func (cm *viperConfigManager) Load() (*Config, error) {
	v, err := cm.reader()
	if err != nil {
		return nil, err
	}

	cfg := configFromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SessionConfig layers sessions.<id>.* overrides over the global settings.
func (cm *viperConfigManager) SessionConfig(sessionID string) (*Config, error) {
	v, err := cm.reader()
	if err != nil {
		return nil, err
	}

	cfg := configFromViper(v)

	prefix := "sessions." + sessionID + "."
	if v.IsSet(prefix + "events_dir") {
		cfg.EventsDir = v.GetString(prefix + "events_dir")
	}
	if v.IsSet(prefix + "buffer_size") {
		cfg.BufferSize = v.GetInt(prefix + "buffer_size")
	}
	if v.IsSet(prefix + "flush_interval_ms") {
		cfg.FlushInterval = time.Duration(v.GetInt(prefix+"flush_interval_ms")) * time.Millisecond
	}
	if v.IsSet(prefix + "buffering") {
		cfg.Buffering = v.GetBool(prefix + "buffering")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
