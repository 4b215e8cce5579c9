// ABOUTME: SQLite-backed DocumentStore emulating a remote document database
// ABOUTME: Stores protojson-encoded Structs so the CLI can run fully offline

package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	_ "modernc.org/sqlite"
)

// SQLiteDocumentStore keeps documents in a local SQLite file.
type SQLiteDocumentStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteDocumentStore opens or creates the emulator database at path.
func NewSQLiteDocumentStore(path string) (*SQLiteDocumentStore, error) {
	logger := slog.Default().With("component", "remote")

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
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			data       TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("document store initialized", "path", path)
	return &SQLiteDocumentStore{db: db, logger: logger}, nil
}

// GetDocument returns the document at collection/id or ErrNotFound.
func (s *SQLiteDocumentStore) GetDocument(ctx context.Context, collection, id string) (*structpb.Struct, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}

	doc := &structpb.Struct{}
	if err := protojson.Unmarshal([]byte(data), doc); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", docKey(collection, id), err)
	}
	return doc, nil
}

// SetDocument writes doc, replacing any existing document at the path.
func (s *SQLiteDocumentStore) SetDocument(ctx context.Context, collection, id string, doc *structpb.Struct) error {
	data, err := protojson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents (collection, id, data, updated_at)
		VALUES (?, ?, ?, ?)
	`, collection, id, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing document: %w", err)
	}

	s.logger.Debug("wrote document", "path", docKey(collection, id), "size", len(data))
	return nil
}

// Close closes the database connection.
func (s *SQLiteDocumentStore) Close() error {
	return s.db.Close()
}

var _ DocumentStore = (*SQLiteDocumentStore)(nil)
