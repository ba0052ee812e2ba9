package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pricealert/backend/internal/domain"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS tracking_state (
    id         SMALLINT PRIMARY KEY CHECK (id = 1),
    document   JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore keeps the tracking state as a single JSONB row
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects with a small pool and ensures the table exists
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", domain.ErrInvalidConfiguration)
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Save implements domain.StateStore
func (s *PostgresStore) Save(ctx context.Context, state *domain.TrackingState) error {
	data, err := encode(state)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO tracking_state (id, document, updated_at) VALUES (1, $1::jsonb, NOW())
		 ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`,
		string(data))
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Load implements domain.StateStore
func (s *PostgresStore) Load(ctx context.Context) (*domain.TrackingState, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT document::text FROM tracking_state WHERE id = 1`).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return decode(doc)
}

// Exists implements domain.StateStore
func (s *PostgresStore) Exists(ctx context.Context) (bool, error) {
	var ok bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tracking_state WHERE id = 1)`).Scan(&ok); err != nil {
		return false, fmt.Errorf("check state: %w", err)
	}
	return ok, nil
}

// Delete implements domain.StateStore
func (s *PostgresStore) Delete(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM tracking_state WHERE id = 1`); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}

// Close releases the pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
