// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists settings snapshots as JSON with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sestako/eunio-app-sub019/internal/settings"
	"github.com/sestako/eunio-app-sub019/internal/syncerr"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS settings (
			user_id       TEXT PRIMARY KEY,
			data          TEXT NOT NULL,
			version       INTEGER NOT NULL,
			sync_status   TEXT NOT NULL,
			last_modified TEXT NOT NULL,
			updated_at    TEXT NOT NULL,

			CHECK (sync_status IN ('pending', 'synced', 'failed'))
		);

		CREATE INDEX IF NOT EXISTS idx_settings_status ON settings(sync_status);

		CREATE TABLE IF NOT EXISTS device_state (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	migrations := []struct {
		check  string
		apply  string
		column string
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('settings') WHERE name = 'version'`,
			apply:  `ALTER TABLE settings ADD COLUMN version INTEGER NOT NULL DEFAULT 1`,
			column: "version",
		},
	}

	for _, m := range migrations {
		var exists int
		if err := s.db.QueryRow(m.check).Scan(&exists); err == nil {
			continue
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to settings: %w", m.column, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", "settings")
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// SaveSettings saves or replaces the snapshot for agg.UserID.
// Invalid snapshots are rejected with a validation error and nothing is written.
func (s *SQLiteStore) SaveSettings(ctx context.Context, agg settings.Aggregate) error {
	if problems := agg.ValidationErrors(); len(problems) > 0 {
		return syncerr.ValidationErrors("settings", problems)
	}

	data, err := settings.Marshal(agg)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO settings (user_id, data, version, sync_status, last_modified, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		agg.UserID,
		string(data),
		agg.Version,
		string(agg.SyncStatus),
		agg.LastModified.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}

	s.logger.Debug("saved settings", "user_id", agg.UserID, "status", agg.SyncStatus)
	return nil
}

// GetSettings retrieves the snapshot for a user.
// Returns ErrNotFound if the user has no saved settings.
func (s *SQLiteStore) GetSettings(ctx context.Context, userID string) (settings.Aggregate, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM settings WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.Aggregate{}, ErrNotFound
	}
	if err != nil {
		return settings.Aggregate{}, fmt.Errorf("querying settings: %w", err)
	}

	agg, err := settings.Unmarshal([]byte(data))
	if err != nil {
		return settings.Aggregate{}, fmt.Errorf("decoding settings for %s: %w", userID, err)
	}
	return agg, nil
}

// DeleteSettings removes a user's snapshot.
// Returns ErrNotFound if there was nothing to delete.
func (s *SQLiteStore) DeleteSettings(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("deleting settings: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted settings", "user_id", userID)
	return nil
}

// ListSettings returns every stored snapshot ordered by user ID.
func (s *SQLiteStore) ListSettings(ctx context.Context) ([]settings.Aggregate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, data FROM settings ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	defer rows.Close()

	var out []settings.Aggregate
	for rows.Next() {
		var userID, data string
		if err := rows.Scan(&userID, &data); err != nil {
			return nil, fmt.Errorf("scanning settings: %w", err)
		}
		agg, err := settings.Unmarshal([]byte(data))
		if err != nil {
			s.logger.Warn("skipping undecodable settings row", "user_id", userID, "error", err)
			continue
		}
		out = append(out, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating settings: %w", err)
	}
	return out, nil
}

// SetActiveUser records which user this device has been restored for.
func (s *SQLiteStore) SetActiveUser(ctx context.Context, userID string) error {
	query := `
		INSERT OR REPLACE INTO device_state (key, value, updated_at)
		VALUES (?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, activeUserKey, userID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving active user: %w", err)
	}
	return nil
}

// GetActiveUser returns the user this device was last restored for.
// Returns ErrNotFound on a device that has never completed a restore.
func (s *SQLiteStore) GetActiveUser(ctx context.Context) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM device_state WHERE key = ?`, activeUserKey).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying active user: %w", err)
	}
	return userID, nil
}
