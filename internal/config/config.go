// ABOUTME: Configuration loading and parsing for eunio-sync
// ABOUTME: Supports YAML or TOML files with ${VAR} expansion, EUNIO_* env overrides and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. EUNIO_DATABASE_PATH.
const EnvPrefix = "EUNIO_"

// Config represents the complete eunio-sync configuration
type Config struct {
	Database DatabaseConfig `yaml:"database" toml:"database" envPrefix:"DATABASE_"`
	Remote   RemoteConfig   `yaml:"remote"   toml:"remote"   envPrefix:"REMOTE_"`
	Sync     SyncConfig     `yaml:"sync"     toml:"sync"     envPrefix:"SYNC_"`
	Cache    CacheConfig    `yaml:"cache"    toml:"cache"    envPrefix:"CACHE_"`
	Logging  LoggingConfig  `yaml:"logging"  toml:"logging"  envPrefix:"LOG_"`
	Metrics  MetricsConfig  `yaml:"metrics"  toml:"metrics"  envPrefix:"METRICS_"`
	Tracing  TracingConfig  `yaml:"tracing"  toml:"tracing"  envPrefix:"TRACING_"`

	// Locale overrides the device locale used to seed unit defaults.
	Locale string `yaml:"locale" toml:"locale" env:"LOCALE"`
}

// DatabaseConfig holds the on-device settings database location
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path" env:"PATH"`
}

// RemoteConfig holds the backup document store location. The CLI backs it
// with a local SQLite emulator.
type RemoteConfig struct {
	Path string `yaml:"path" toml:"path" env:"PATH"`
}

// SyncConfig holds retry and reconciliation tuning
type SyncConfig struct {
	MaxAttempts     int     `yaml:"max_attempts"      toml:"max_attempts"      env:"MAX_ATTEMPTS"`
	Multiplier      float64 `yaml:"multiplier"        toml:"multiplier"        env:"MULTIPLIER"`
	AutoRetryFailed bool    `yaml:"auto_retry_failed" toml:"auto_retry_failed" env:"AUTO_RETRY_FAILED"`

	BaseDelay         time.Duration `yaml:"-" toml:"-"`
	MaxDelay          time.Duration `yaml:"-" toml:"-"`
	ReconcileInterval time.Duration `yaml:"-" toml:"-"`

	// Raw string values for file and env unmarshaling
	BaseDelayRaw         string `yaml:"base_delay"         toml:"base_delay"         env:"BASE_DELAY"`
	MaxDelayRaw          string `yaml:"max_delay"          toml:"max_delay"          env:"MAX_DELAY"`
	ReconcileIntervalRaw string `yaml:"reconcile_interval" toml:"reconcile_interval" env:"RECONCILE_INTERVAL"`
}

// CacheConfig sizes the conversion cache
type CacheConfig struct {
	MaxSize      int    `yaml:"max_size"      toml:"max_size"      env:"MAX_SIZE"`
	InsertPolicy string `yaml:"insert_policy" toml:"insert_policy" env:"INSERT_POLICY"` // skip, evict
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"       toml:"level"       env:"LEVEL"`
	Format     string `yaml:"format"      toml:"format"      env:"FORMAT"`
	File       string `yaml:"file"        toml:"file"        env:"FILE"` // rotated with lumberjack when set
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups" env:"MAX_BACKUPS"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" env:"ENABLED"`
	Addr    string `yaml:"addr"    toml:"addr"    env:"ADDR"`
	Path    string `yaml:"path"    toml:"path"    env:"PATH"`
}

// TracingConfig holds OpenTelemetry export configuration. Tracing is off
// unless an OTLP/HTTP endpoint is set.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"     toml:"endpoint"     env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" toml:"service_name" env:"SERVICE_NAME"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Database: DatabaseConfig{Path: filepath.Join(dataDir, "settings.db")},
		Remote:   RemoteConfig{Path: filepath.Join(dataDir, "backup.db")},
		Sync: SyncConfig{
			MaxAttempts:          3,
			Multiplier:           2,
			BaseDelayRaw:         "1s",
			MaxDelayRaw:          "30s",
			ReconcileIntervalRaw: "1m",
		},
		Cache: CacheConfig{
			MaxSize:      1000,
			InsertPolicy: "skip",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
			Path: "/metrics",
		},
		Tracing: TracingConfig{
			ServiceName: "eunio-sync",
		},
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "eunio")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "eunio")
	}
	return "."
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, anything else as YAML. Values
// absent from the file keep their defaults. Environment variables in the
// format ${VAR_NAME} are expanded, then EUNIO_* overrides are applied.
// An empty path loads defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := expandEnvVars(string(data))

		if strings.EqualFold(filepath.Ext(path), ".toml") {
			if _, err := toml.Decode(expanded, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment overrides: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Remote.Path == "" {
		return fmt.Errorf("remote.path is required")
	}

	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("sync.max_attempts must be at least 1")
	}
	if c.Sync.Multiplier < 1 {
		return fmt.Errorf("sync.multiplier must be at least 1")
	}
	if c.Sync.BaseDelay <= 0 {
		return fmt.Errorf("sync.base_delay must be positive")
	}
	if c.Sync.MaxDelay < c.Sync.BaseDelay {
		return fmt.Errorf("sync.max_delay must not be less than sync.base_delay")
	}
	if c.Sync.ReconcileInterval <= 0 {
		return fmt.Errorf("sync.reconcile_interval must be positive")
	}

	if c.Cache.MaxSize < 1 {
		return fmt.Errorf("cache.max_size must be at least 1")
	}
	switch c.Cache.InsertPolicy {
	case "skip", "evict":
	default:
		return fmt.Errorf("cache.insert_policy must be skip or evict, got %q", c.Cache.InsertPolicy)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"base_delay", cfg.Sync.BaseDelayRaw, &cfg.Sync.BaseDelay},
		{"max_delay", cfg.Sync.MaxDelayRaw, &cfg.Sync.MaxDelay},
		{"reconcile_interval", cfg.Sync.ReconcileIntervalRaw, &cfg.Sync.ReconcileInterval},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
