// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, env overrides and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
database:
  path: "./settings.db"
remote:
  path: "./backup.db"
sync:
  max_attempts: 5
  base_delay: "250ms"
  max_delay: "10s"
  reconcile_interval: "30s"
  auto_retry_failed: true
cache:
  max_size: 64
  insert_policy: evict
locale: "en_US"
logging:
  level: "debug"
  format: "json"
metrics:
  enabled: true
  addr: ":9464"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "./settings.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./settings.db")
	}
	if cfg.Sync.MaxAttempts != 5 {
		t.Errorf("Sync.MaxAttempts = %d, want 5", cfg.Sync.MaxAttempts)
	}
	if cfg.Sync.BaseDelay != 250*time.Millisecond {
		t.Errorf("Sync.BaseDelay = %v, want 250ms", cfg.Sync.BaseDelay)
	}
	if cfg.Sync.MaxDelay != 10*time.Second {
		t.Errorf("Sync.MaxDelay = %v, want 10s", cfg.Sync.MaxDelay)
	}
	if cfg.Sync.ReconcileInterval != 30*time.Second {
		t.Errorf("Sync.ReconcileInterval = %v, want 30s", cfg.Sync.ReconcileInterval)
	}
	if !cfg.Sync.AutoRetryFailed {
		t.Error("Sync.AutoRetryFailed = false, want true")
	}
	if cfg.Sync.Multiplier != 2 {
		t.Errorf("Sync.Multiplier = %v, want default 2", cfg.Sync.Multiplier)
	}
	if cfg.Cache.MaxSize != 64 || cfg.Cache.InsertPolicy != "evict" {
		t.Errorf("Cache = %+v, want max_size 64 evict", cfg.Cache)
	}
	if cfg.Locale != "en_US" {
		t.Errorf("Locale = %q, want en_US", cfg.Locale)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want default /metrics", cfg.Metrics.Path)
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
locale = "de_DE"

[database]
path = "./settings.db"

[sync]
max_attempts = 4
base_delay = "2s"

[logging]
level = "warn"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sync.MaxAttempts != 4 {
		t.Errorf("Sync.MaxAttempts = %d, want 4", cfg.Sync.MaxAttempts)
	}
	if cfg.Sync.BaseDelay != 2*time.Second {
		t.Errorf("Sync.BaseDelay = %v, want 2s", cfg.Sync.BaseDelay)
	}
	if cfg.Locale != "de_DE" {
		t.Errorf("Locale = %q, want de_DE", cfg.Locale)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_EUNIO_DIR", "/tmp/eunio-test")
	path := writeConfig(t, "config.yaml", `
database:
  path: "${TEST_EUNIO_DIR}/settings.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/eunio-test/settings.db" {
		t.Errorf("Database.Path = %q, want expanded path", cfg.Database.Path)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EUNIO_DATABASE_PATH", "/override/settings.db")
	t.Setenv("EUNIO_SYNC_MAX_ATTEMPTS", "7")
	t.Setenv("EUNIO_SYNC_BASE_DELAY", "500ms")
	t.Setenv("EUNIO_CACHE_INSERT_POLICY", "evict")
	t.Setenv("EUNIO_LOG_LEVEL", "debug")
	t.Setenv("EUNIO_TRACING_ENDPOINT", "http://localhost:4318")

	path := writeConfig(t, "config.yaml", `
database:
  path: "./settings.db"
sync:
  max_attempts: 2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/override/settings.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Sync.MaxAttempts != 7 {
		t.Errorf("Sync.MaxAttempts = %d, want 7", cfg.Sync.MaxAttempts)
	}
	if cfg.Sync.BaseDelay != 500*time.Millisecond {
		t.Errorf("Sync.BaseDelay = %v, want 500ms", cfg.Sync.BaseDelay)
	}
	if cfg.Cache.InsertPolicy != "evict" {
		t.Errorf("Cache.InsertPolicy = %q, want evict", cfg.Cache.InsertPolicy)
	}
	if cfg.Tracing.Endpoint != "http://localhost:4318" {
		t.Errorf("Tracing.Endpoint = %q, want env override", cfg.Tracing.Endpoint)
	}
	if cfg.Tracing.ServiceName != "eunio-sync" {
		t.Errorf("Tracing.ServiceName = %q, want default", cfg.Tracing.ServiceName)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != filepath.Join("/data", "eunio", "settings.db") {
		t.Errorf("Database.Path = %q, want XDG default", cfg.Database.Path)
	}
	if cfg.Sync.BaseDelay != time.Second || cfg.Sync.MaxDelay != 30*time.Second {
		t.Errorf("Sync delays = %v/%v, want 1s/30s", cfg.Sync.BaseDelay, cfg.Sync.MaxDelay)
	}
	if cfg.Cache.MaxSize != 1000 {
		t.Errorf("Cache.MaxSize = %d, want 1000", cfg.Cache.MaxSize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
sync:
  base_delay: "soon"
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "base_delay") {
		t.Fatalf("Load() error = %v, want base_delay parse error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"missing database", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"zero attempts", func(c *Config) { c.Sync.MaxAttempts = 0 }, "max_attempts"},
		{"shrinking multiplier", func(c *Config) { c.Sync.Multiplier = 0.5 }, "multiplier"},
		{"max below base", func(c *Config) { c.Sync.MaxDelay = time.Millisecond }, "max_delay"},
		{"bad policy", func(c *Config) { c.Cache.InsertPolicy = "random" }, "insert_policy"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }, "metrics.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if err := parseDurations(cfg); err != nil {
				t.Fatalf("parseDurations() error = %v", err)
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
