// Package store provides on-device persistence for settings snapshots using SQLite.
//
// # Architecture
//
// Store is the single interface the sync engine and restore coordinator
// depend on. It keeps one snapshot per user and a small device_state table
// recording which user the device was last restored for.
//
//   - SQLiteStore: modernc.org/sqlite, no CGO
//   - MockStore: in-memory, for unit tests
//
// Snapshots are stored as their JSON encoding alongside indexed copies of
// the user ID, sync status, schema version and last-modified time.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// Database file locations:
//
//   - Development: ~/.local/share/eunio/settings.db
//   - Testing: a file under t.TempDir() or :memory:
//
// # Error Handling
//
//   - ErrNotFound: no snapshot for the user, or no active user recorded
//   - syncerr validation errors: SaveSettings refuses invalid snapshots
//
// # Migrations
//
// Column migrations run automatically on open and are idempotent.
package store
