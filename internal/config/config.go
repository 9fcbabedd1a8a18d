// Package config loads the application configuration from a TOML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment override, e.g. CARDTABLE_HISTORY_LIMIT.
const EnvPrefix = "CARDTABLE_"

// DirName is the configuration directory inside the user's home directory.
const DirName = ".cardtable"

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server" envPrefix:"SERVER_"`
	Storage StorageConfig `toml:"storage" envPrefix:"STORAGE_"`
	History HistoryConfig `toml:"history" envPrefix:"HISTORY_"`
	Import  ImportConfig  `toml:"import" envPrefix:"IMPORT_"`
	Log     LogConfig     `toml:"log" envPrefix:"LOG_"`
}

// ServerConfig contains the HTTP API settings.
type ServerConfig struct {
	Address         string   `toml:"address" env:"ADDRESS"`                                  // Listen address (e.g., "127.0.0.1:8472")
	AllowedOrigins  []string `toml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","` // CORS origins
	ShutdownTimeout string   `toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`                // Graceful shutdown (e.g., "10s")
}

// StorageConfig contains database and backup settings.
type StorageConfig struct {
	Path           string `toml:"path" env:"PATH"`                       // SQLite file; empty means <config dir>/cardtable.db
	BackupDir      string `toml:"backup_dir" env:"BACKUP_DIR"`           // Empty means next to the database
	BackupInterval string `toml:"backup_interval" env:"BACKUP_INTERVAL"` // "0" disables scheduled backups
	Revisions      int    `toml:"revisions" env:"REVISIONS"`             // Earlier documents kept
	AutosaveDelay  string `toml:"autosave_delay" env:"AUTOSAVE_DELAY"`   // Quiet period before saving
}

// HistoryConfig contains undo history settings.
type HistoryConfig struct {
	Limit int `toml:"limit" env:"LIMIT"` // Undo steps kept per tabletop
}

// ImportConfig contains included-decks feed settings.
type ImportConfig struct {
	FeedDir       string `toml:"feed_dir" env:"FEED_DIR"`             // Empty disables the importer
	Watch         bool   `toml:"watch" env:"WATCH"`                   // Refresh when feed files change
	WatchInterval string `toml:"watch_interval" env:"WATCH_INTERVAL"` // Minimum time between refreshes
	OnStart       bool   `toml:"on_start" env:"ON_START"`             // Refresh once at startup
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `toml:"level" env:"LEVEL"`   // debug, info, warn, error
	Format string `toml:"format" env:"FORMAT"` // text or json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         "127.0.0.1:8472",
			AllowedOrigins:  []string{"http://localhost:5173"},
			ShutdownTimeout: "10s",
		},
		Storage: StorageConfig{
			BackupInterval: "24h",
			Revisions:      10,
			AutosaveDelay:  "2s",
		},
		History: HistoryConfig{
			Limit: 100,
		},
		Import: ImportConfig{
			WatchInterval: "1s",
			OnStart:       true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Dir returns the configuration directory, creating it if needed.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	dir := filepath.Join(homeDir, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return dir, nil
}

// Path returns the path to the configuration file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads the configuration file from the configuration directory and
// applies environment overrides. A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration file at path and applies environment
// overrides. Keys missing from the file keep their defaults.
func LoadFrom(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := config.resolvePaths(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides values with CARDTABLE_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) resolvePaths() error {
	if c.Storage.Path != "" {
		return nil
	}
	dir, err := Dir()
	if err != nil {
		return err
	}
	c.Storage.Path = filepath.Join(dir, "cardtable.db")
	return nil
}

// Save saves the configuration to the configuration directory.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	durations := map[string]string{
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"storage.backup_interval": c.Storage.BackupInterval,
		"storage.autosave_delay":  c.Storage.AutosaveDelay,
		"import.watch_interval":   c.Import.WatchInterval,
	}
	for key, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		if d < 0 {
			return fmt.Errorf("%s cannot be negative: %s", key, value)
		}
	}

	if c.Server.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.Storage.Revisions < 0 {
		return fmt.Errorf("storage revisions cannot be negative: %d", c.Storage.Revisions)
	}
	if c.History.Limit < 1 {
		return fmt.Errorf("history limit must be at least 1: %d", c.History.Limit)
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	return nil
}

// GetShutdownTimeout returns the graceful shutdown timeout.
func (c *Config) GetShutdownTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.ShutdownTimeout)
	return d
}

// GetBackupInterval returns the scheduled backup interval, 0 when disabled.
func (c *Config) GetBackupInterval() time.Duration {
	d, _ := time.ParseDuration(c.Storage.BackupInterval)
	return d
}

// GetAutosaveDelay returns the autosave quiet period.
func (c *Config) GetAutosaveDelay() time.Duration {
	d, _ := time.ParseDuration(c.Storage.AutosaveDelay)
	return d
}

// GetWatchInterval returns the minimum time between feed refreshes.
func (c *Config) GetWatchInterval() time.Duration {
	d, _ := time.ParseDuration(c.Import.WatchInterval)
	return d
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", l.Level)
	}
	return level, nil
}

// NewLogger builds a logger writing to w in the configured format and level.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
