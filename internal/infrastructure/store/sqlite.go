package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pricealert/backend/internal/domain"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS tracking_state (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    document   TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
)`

// SQLiteStore keeps the tracking state as a single JSON row
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates) the database at path with WAL and a
// busy timeout. ":memory:" is accepted for tests.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", domain.ErrInvalidConfiguration)
	}
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		dsn = path + sep + "_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save implements domain.StateStore
func (s *SQLiteStore) Save(ctx context.Context, state *domain.TrackingState) error {
	data, err := encode(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tracking_state (id, document, updated_at)
		 VALUES (1, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		 ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		string(data))
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Load implements domain.StateStore
func (s *SQLiteStore) Load(ctx context.Context) (*domain.TrackingState, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM tracking_state WHERE id = 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return decode([]byte(doc))
}

// Exists implements domain.StateStore
func (s *SQLiteStore) Exists(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracking_state WHERE id = 1`).Scan(&n); err != nil {
		return false, fmt.Errorf("check state: %w", err)
	}
	return n > 0, nil
}

// Delete implements domain.StateStore
func (s *SQLiteStore) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tracking_state WHERE id = 1`); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
