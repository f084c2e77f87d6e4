// Package config handles loading and parsing the application's configuration.
// Values come from defaults, then the TOML file, then the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Backend names accepted in store.backend.
const (
	BackendFile    = "file"
	BackendRemote  = "remote"
	BackendBolt    = "bolt"
	BackendSQLite  = "sqlite"
	BackendJournal = "journal"
	BackendMemory  = "memory"
)

// Config holds all configuration for the application.
// We use struct tags to explicitly map TOML keys and env vars to struct fields.
type Config struct {
	Host         string        `toml:"host" env:"HEADLINES_HOST"`
	Port         int           `toml:"port" env:"HEADLINES_PORT"`
	StaticDir    string        `toml:"static_dir" env:"HEADLINES_STATIC_DIR"`          // Directory served at /
	MaxLength    int           `toml:"max_headline_length" env:"HEADLINES_MAX_LENGTH"` // Characters kept after trimming
	RecentLimit  int           `toml:"recent_limit" env:"HEADLINES_RECENT_LIMIT"`      // Entries returned by /api/recent
	StoreTimeout time.Duration `toml:"store_timeout" env:"HEADLINES_STORE_TIMEOUT"`    // Bound on each store call
	LogLevel     string        `toml:"log_level" env:"HEADLINES_LOG_LEVEL"`

	Store     StoreConfig     `toml:"store"`
	Geo       GeoConfig       `toml:"geo"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend      string       `toml:"backend" env:"HEADLINES_STORE_BACKEND"`
	Path         string       `toml:"path" env:"HEADLINES_STORE_PATH"`             // file, bolt, sqlite and journal backends
	HistoryLimit int          `toml:"history_limit" env:"HEADLINES_HISTORY_LIMIT"` // 0 keeps all history
	Remote       RemoteConfig `toml:"remote"`
}

// RemoteConfig addresses the remote key/value store.
type RemoteConfig struct {
	URL           string `toml:"url" env:"KV_REST_API_URL"`
	Token         string `toml:"token" env:"KV_REST_API_TOKEN"`
	Transactional bool   `toml:"transactional" env:"HEADLINES_REMOTE_TRANSACTIONAL"`
}

// GeoConfig configures the IP to country lookup.
type GeoConfig struct {
	Endpoint  string        `toml:"endpoint" env:"HEADLINES_GEO_ENDPOINT"`
	Timeout   time.Duration `toml:"timeout" env:"HEADLINES_GEO_TIMEOUT"`
	CacheSize int           `toml:"cache_size" env:"HEADLINES_GEO_CACHE_SIZE"`
	CacheTTL  time.Duration `toml:"cache_ttl" env:"HEADLINES_GEO_CACHE_TTL"`
}

// TelemetryConfig enables trace export.
type TelemetryConfig struct {
	ServiceName  string `toml:"service_name" env:"HEADLINES_SERVICE_NAME"`
	OTLPEndpoint string `toml:"otel_endpoint" env:"HEADLINES_OTEL_ENDPOINT"` // empty disables tracing
}

// New returns a new Config with default values.
func New() *Config {
	return &Config{
		Host:         "0.0.0.0",
		Port:         3000,
		StaticDir:    "public",
		MaxLength:    500,
		RecentLimit:  10,
		StoreTimeout: 5 * time.Second,
		LogLevel:     "info",
		Store: StoreConfig{
			Backend:      BackendFile,
			Path:         "headlines.json",
			HistoryLimit: 50,
			Remote: RemoteConfig{
				Transactional: true,
			},
		},
		Geo: GeoConfig{
			Endpoint:  "http://ip-api.com/json/",
			Timeout:   3 * time.Second,
			CacheSize: 1024,
			CacheTTL:  time.Hour,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "headlines",
		},
	}
}

// Load reads a configuration file from the given path and populates the Config struct.
func (c *Config) Load(path string) error {
	_, err := toml.DecodeFile(path, c)
	return err
}

// LoadOptional is Load, but a missing file leaves the config untouched.
func (c *Config) LoadOptional(path string) error {
	err := c.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxLength < 1 {
		return fmt.Errorf("max_headline_length must be positive, got %d", c.MaxLength)
	}
	if c.RecentLimit < 1 {
		return fmt.Errorf("recent_limit must be positive, got %d", c.RecentLimit)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("store_timeout must be positive, got %s", c.StoreTimeout)
	}
	if c.Store.HistoryLimit < 0 {
		return fmt.Errorf("store.history_limit cannot be negative, got %d", c.Store.HistoryLimit)
	}

	switch c.Store.Backend {
	case BackendFile, BackendBolt, BackendSQLite, BackendJournal:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s backend", c.Store.Backend)
		}
	case BackendRemote:
		if c.Store.Remote.URL == "" || c.Store.Remote.Token == "" {
			return fmt.Errorf("store.remote.url and store.remote.token are required for the remote backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}

	if c.Geo.Endpoint == "" {
		return fmt.Errorf("geo.endpoint cannot be empty")
	}
	return nil
}
