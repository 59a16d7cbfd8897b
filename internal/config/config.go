// Package config loads fieldsync settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Remote kinds
const (
	RemoteREST     = "rest"
	RemotePostgres = "postgres"
)

// Config holds all fieldsync settings
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Remote   RemoteConfig   `yaml:"remote"`
	Storage  StorageConfig  `yaml:"storage"`
	Sync     SyncConfig     `yaml:"sync"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig locates the local draft database
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RemoteConfig selects where synced reports go
type RemoteConfig struct {
	Kind   string `yaml:"kind"` // rest, postgres
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Token  string `yaml:"token"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
}

// StorageConfig is the object storage used for photos
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Secure    bool   `yaml:"secure"`
}

// Enabled reports whether photo uploads are configured.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != ""
}

// SyncConfig tunes a sync run
type SyncConfig struct {
	Workers int    `yaml:"workers"`
	Timeout string `yaml:"timeout"` // per report, e.g. "30s"
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join("data", "fieldsync.db"),
		},
		Remote: RemoteConfig{
			Kind:  RemoteREST,
			Table: "form_responses",
		},
		Storage: StorageConfig{
			Bucket: "inspection-photos",
			Secure: true,
		},
		Sync: SyncConfig{
			Workers: 1,
			Timeout: "30s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
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
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	c.Database.Path = getEnv("FIELDSYNC_DB", c.Database.Path)

	c.Remote.Kind = getEnv("FIELDSYNC_REMOTE_KIND", c.Remote.Kind)
	c.Remote.URL = getEnv("FIELDSYNC_REMOTE_URL", c.Remote.URL)
	c.Remote.APIKey = getEnv("FIELDSYNC_API_KEY", c.Remote.APIKey)
	c.Remote.Token = getEnv("FIELDSYNC_TOKEN", c.Remote.Token)
	c.Remote.DSN = getEnv("FIELDSYNC_POSTGRES_DSN", c.Remote.DSN)
	c.Remote.Table = getEnv("FIELDSYNC_REMOTE_TABLE", c.Remote.Table)

	c.Storage.Endpoint = getEnv("FIELDSYNC_STORAGE_ENDPOINT", c.Storage.Endpoint)
	c.Storage.AccessKey = getEnv("FIELDSYNC_STORAGE_ACCESS_KEY", c.Storage.AccessKey)
	c.Storage.SecretKey = getEnv("FIELDSYNC_STORAGE_SECRET_KEY", c.Storage.SecretKey)
	c.Storage.Bucket = getEnv("FIELDSYNC_STORAGE_BUCKET", c.Storage.Bucket)

	c.Sync.Workers = getEnvInt("FIELDSYNC_SYNC_WORKERS", c.Sync.Workers)
	c.Sync.Timeout = getEnv("FIELDSYNC_SYNC_TIMEOUT", c.Sync.Timeout)

	c.Logging.Level = getEnv("FIELDSYNC_LOG_LEVEL", c.Logging.Level)
}

// SyncTimeout returns the per-report timeout as a duration.
func (c *Config) SyncTimeout() time.Duration {
	d, err := time.ParseDuration(c.Sync.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	switch c.Remote.Kind {
	case RemoteREST:
		if c.Remote.URL == "" {
			errs = append(errs, errors.New("remote.url is required for the rest remote"))
		}
		if c.Remote.APIKey == "" && c.Remote.Token == "" {
			errs = append(errs, errors.New("remote.api_key or remote.token is required for the rest remote"))
		}
	case RemotePostgres:
		if c.Remote.DSN == "" {
			errs = append(errs, errors.New("remote.dsn is required for the postgres remote"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown remote.kind %q (want %s or %s)", c.Remote.Kind, RemoteREST, RemotePostgres))
	}
	if c.Sync.Workers < 1 {
		errs = append(errs, fmt.Errorf("sync.workers must be at least 1, got %d", c.Sync.Workers))
	}
	if d, err := time.ParseDuration(c.Sync.Timeout); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("invalid sync.timeout %q", c.Sync.Timeout))
	}
	if c.Storage.Enabled() && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		errs = append(errs, errors.New("storage.access_key and storage.secret_key are required when storage.endpoint is set"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
