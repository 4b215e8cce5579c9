// Package config handles configuration loading for eunio-sync.
//
// # Overview
//
// Configuration starts from Default(), is overlaid with an optional YAML or
// TOML file, then with EUNIO_* environment variables.
//
// # Environment Variable Expansion
//
// File values can reference environment variables:
//
//	database:
//	  path: "${HOME}/.local/share/eunio/settings.db"
//
// # Environment Overrides
//
// Every field can be overridden, for example:
//
//	EUNIO_DATABASE_PATH=/tmp/settings.db
//	EUNIO_SYNC_MAX_ATTEMPTS=5
//	EUNIO_SYNC_BASE_DELAY=500ms
//	EUNIO_CACHE_INSERT_POLICY=evict
//	EUNIO_LOG_LEVEL=debug
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sync:
//	  base_delay: "1s"
//	  max_delay: "30s"
//	  reconcile_interval: "1m"
//
// # Configuration Sections
//
//	database:
//	  path: "~/.local/share/eunio/settings.db"
//	remote:
//	  path: "~/.local/share/eunio/backup.db"   # local backup emulator
//	sync:
//	  max_attempts: 3
//	  multiplier: 2
//	  auto_retry_failed: false
//	cache:
//	  max_size: 1000        # per family
//	  insert_policy: skip   # skip, evict
//	locale: "en_US"         # empty: read LC_ALL / LC_MEASUREMENT / LANG
//	logging:
//	  level: "info"         # debug, info, warn, error
//	  format: "text"        # text, json
//	  file: ""              # rotate into this file when set
//	metrics:
//	  enabled: false
//	  addr: "127.0.0.1:9464"
//	  path: "/metrics"
//
// The same keys work in TOML when the file ends in .toml.
package config
