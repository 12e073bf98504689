// Package config provides unified configuration loading for deckdoc.
// Supports YAML files, .env files, and environment variable overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultAPIBase is the local development backend.
const DefaultAPIBase = "http://localhost:8000"

// Config holds all configuration for deckdoc.
type Config struct {
	API           APIConfig           `yaml:"api"`
	Poller        PollerConfig        `yaml:"poller"`
	Download      DownloadConfig      `yaml:"download"`
	History       HistoryConfig       `yaml:"history"`
	Broadcast     BroadcastConfig     `yaml:"broadcast"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// APIConfig holds extraction backend settings.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	UploadTimeout  time.Duration `yaml:"upload_timeout"`
}

// PollerConfig holds job polling settings.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// DownloadConfig holds artifact download settings.
type DownloadConfig struct {
	Dir            string        `yaml:"dir"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// HistoryConfig holds the local job ledger settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// BroadcastConfig holds snapshot fan-out settings.
type BroadcastConfig struct {
	Driver string      `yaml:"driver"` // none or redis
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	// URL, when set, overrides Addr, Username, Password and DB.
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies .env and environment overrides.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err := cfg.Broadcast.Redis.applyURL(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        DefaultAPIBase,
			RequestTimeout: 30 * time.Second,
			UploadTimeout:  5 * time.Minute,
		},
		Poller: PollerConfig{
			Interval: 1500 * time.Millisecond,
		},
		Download: DownloadConfig{
			Dir:            ".",
			MaxRetries:     3,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     30 * time.Second,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    defaultHistoryPath(),
		},
		Broadcast: BroadcastConfig{
			Driver: "none",
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 4,
				Prefix:   "deckdoc:",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "warn",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api base url: %q", c.API.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported api base url scheme: %s", u.Scheme)
	}

	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller interval must be positive")
	}

	if c.API.RequestTimeout <= 0 || c.API.UploadTimeout <= 0 {
		return fmt.Errorf("api timeouts must be positive")
	}

	if c.Broadcast.Driver != "none" && c.Broadcast.Driver != "redis" {
		return fmt.Errorf("invalid broadcast driver: %s", c.Broadcast.Driver)
	}

	if c.Broadcast.Redis.URL != "" {
		if _, err := redis.ParseURL(c.Broadcast.Redis.URL); err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history path is required when history is enabled")
	}

	if c.Download.MaxRetries < 0 {
		return fmt.Errorf("download max_retries must not be negative")
	}

	return nil
}

// APIBase returns the base URL without a trailing slash.
func (c *Config) APIBase() string {
	return strings.TrimRight(c.API.BaseURL, "/")
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	// NEXT_PUBLIC_API_BASE is honoured so a shared .env with the web UI works.
	if v := os.Getenv("NEXT_PUBLIC_API_BASE"); v != "" {
		cfg.API.BaseURL = v
	}

	if v := os.Getenv("API_BASE"); v != "" {
		cfg.API.BaseURL = v
	}

	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Poller.Interval = d
		}
	}

	if v := os.Getenv("API_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.API.RequestTimeout = d
		}
	}

	if v := os.Getenv("DECKDOC_DOWNLOAD_DIR"); v != "" {
		cfg.Download.Dir = v
	}

	if v := os.Getenv("DECKDOC_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}

	if v := os.Getenv("DECKDOC_HISTORY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.History.Enabled = b
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Broadcast.Driver = "redis"
		cfg.Broadcast.Redis.URL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// defaultHistoryPath returns $HOME/.deckdoc/history.db, or a relative path when
// the home directory is unknown.
func defaultHistoryPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".deckdoc", "history.db")
	}
	return filepath.Join("data", "history.db")
}

// applyURL copies the connection fields parsed from URL.
func (r *RedisConfig) applyURL() error {
	if r.URL == "" {
		return nil
	}
	opts, err := redis.ParseURL(r.URL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	r.Addr = opts.Addr
	r.Username = opts.Username
	r.Password = opts.Password
	r.DB = opts.DB
	return nil
}
