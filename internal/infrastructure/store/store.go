package store

import (
	"context"
	"fmt"
	"io"

	"github.com/pricealert/backend/internal/domain"
)

// Backend types accepted by Open
const (
	TypeFile     = "file"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Config selects and configures a state store backend
type Config struct {
	Type string
	// Path is the file or sqlite database path
	Path string
	// DSN is the postgres connection string
	DSN string
}

// Store is a state store that holds resources
type Store interface {
	domain.StateStore
	io.Closer
}

// Open creates the configured backend. An empty type means file.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "", TypeFile:
		return NewFileStore(cfg.Path)
	case TypeSQLite:
		return NewSQLiteStore(ctx, cfg.Path)
	case TypePostgres:
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: unknown store type %q", domain.ErrInvalidConfiguration, cfg.Type)
	}
}
