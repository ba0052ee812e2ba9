package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Scraper is the per-site capability used to find and price products.
// Search returns an empty slice, not an error, when nothing matches.
// Fetch may return an error for transport faults; callers treat it
// exactly like a nil result.
type Scraper interface {
	Site() Site
	Search(ctx context.Context, keyword string, limit int) ([]Candidate, error)
	Fetch(ctx context.Context, productURL string) (*PriceResult, error)
}

// Emailer delivers a plain-text message to a single recipient
type Emailer interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// StateStore persists the single tracking state. Save overwrites atomically.
type StateStore interface {
	Save(ctx context.Context, state *TrackingState) error
	Load(ctx context.Context) (*TrackingState, error)
	Exists(ctx context.Context) (bool, error)
	Delete(ctx context.Context) error
}
