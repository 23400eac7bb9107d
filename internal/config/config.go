// Package config defines the claustrum configuration surface and its
// viper-backed loading. All values are policy knobs (TTLs, retention,
// retry ceilings), never protocol: changing them must not affect
// correctness, only how aggressively state is expired.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete claustrum configuration.
type Config struct {
	Session SessionConfig `mapstructure:"session"`
	Mailbox MailboxConfig `mapstructure:"mailbox"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SessionConfig controls session liveness policy.
type SessionConfig struct {
	// TTL is how long a session stays "active" after its last heartbeat.
	// Sessions past the TTL are expired lazily by readers and GC sweeps.
	TTL time.Duration `mapstructure:"ttl"`
}

// MailboxConfig controls message retention policy.
type MailboxConfig struct {
	// Retention is how long messages are kept before GC deletes them,
	// regardless of whether any recipient has read them.
	Retention time.Duration `mapstructure:"retention"`
}

// StoreConfig controls the shared SQLite store.
type StoreConfig struct {
	// Path is the database file location. Empty means StateDir()/claustrum.db.
	Path string `mapstructure:"path"`
	// BusyTimeoutMs is the SQLite busy_timeout pragma in milliseconds.
	BusyTimeoutMs int `mapstructure:"busy_timeout_ms"`
	// MaxAttempts is how many times a transaction is retried when the
	// store reports contention before the operation fails.
	MaxAttempts int `mapstructure:"max_attempts"`
	// RetryBackoffMs is the base backoff between attempts; it doubles
	// on each retry.
	RetryBackoffMs int `mapstructure:"retry_backoff_ms"`
}

// LoggingConfig controls debug logging behavior.
type LoggingConfig struct {
	// Enabled controls whether debug logging is written at all.
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
}

// BusyTimeout returns the busy timeout as a duration.
func (s *StoreConfig) BusyTimeout() time.Duration {
	return time.Duration(s.BusyTimeoutMs) * time.Millisecond
}

// RetryBackoff returns the base retry backoff as a duration.
func (s *StoreConfig) RetryBackoff() time.Duration {
	return time.Duration(s.RetryBackoffMs) * time.Millisecond
}

// ResolvePath returns the database file path, falling back to the
// default location under StateDir when unset. A ~ prefix expands to
// the user's home directory.
func (s *StoreConfig) ResolvePath() string {
	if s.Path == "" {
		return filepath.Join(StateDir(), "claustrum.db")
	}
	path := s.Path
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return path
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			TTL: 5 * time.Minute,
		},
		Mailbox: MailboxConfig{
			Retention: time.Hour,
		},
		Store: StoreConfig{
			Path:           "",
			BusyTimeoutMs:  5000,
			MaxAttempts:    5,
			RetryBackoffMs: 50,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
	}
}

// SetDefaults registers default values with viper so they're available
// even without a config file.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("session.ttl", defaults.Session.TTL)

	viper.SetDefault("mailbox.retention", defaults.Mailbox.Retention)

	viper.SetDefault("store.path", defaults.Store.Path)
	viper.SetDefault("store.busy_timeout_ms", defaults.Store.BusyTimeoutMs)
	viper.SetDefault("store.max_attempts", defaults.Store.MaxAttempts)
	viper.SetDefault("store.retry_backoff_ms", defaults.Store.RetryBackoffMs)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Load reads the configuration from viper into a Config struct and
// validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if
// unmarshaling fails. Coordination must stay usable even with a broken
// config file.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks the configuration for values that would break
// coordination semantics.
func (c *Config) Validate() error {
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive, got %s", c.Session.TTL)
	}
	if c.Mailbox.Retention <= 0 {
		return fmt.Errorf("mailbox.retention must be positive, got %s", c.Mailbox.Retention)
	}
	if c.Store.MaxAttempts < 1 {
		return fmt.Errorf("store.max_attempts must be at least 1, got %d", c.Store.MaxAttempts)
	}
	if c.Store.BusyTimeoutMs < 0 {
		return fmt.Errorf("store.busy_timeout_ms must not be negative, got %d", c.Store.BusyTimeoutMs)
	}
	return nil
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "claustrum")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claustrum"
	}
	return filepath.Join(home, ".config", "claustrum")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// StateDir returns the directory holding the shared database, read
// cursors, and debug logs. Unlike ConfigDir it follows XDG_STATE_HOME.
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "claustrum")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claustrum"
	}
	return filepath.Join(home, ".local", "state", "claustrum")
}

// CursorDir returns the directory holding per-session mailbox cursors.
func CursorDir() string {
	return filepath.Join(StateDir(), "cursors")
}
