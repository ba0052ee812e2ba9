package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pricealert/backend/internal/domain"
)

// DefaultCleanupInterval is how often expired entries are swept
const DefaultCleanupInterval = 10 * time.Minute

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryCache is a thread-safe in-memory byte cache with per-entry TTL.
// Payloads are copied on the way in and out so callers cannot alias them.
type MemoryCache struct {
	entries map[string]entry
	mu      sync.RWMutex
	now     func() time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

// NewMemoryCache creates a cache and starts its sweeper.
// A non-positive interval uses DefaultCleanupInterval.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	c := &MemoryCache{
		entries: make(map[string]entry),
		now:     time.Now,
		closed:  make(chan struct{}),
	}
	go c.sweep(cleanupInterval)
	return c
}

// Get returns a copy of the payload stored under key
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.expired(e) {
		return nil, domain.ErrCacheMiss
	}
	return clone(e.payload), nil
}

// Set stores value under key for ttl. A non-positive ttl never expires.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{payload: clone(value)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Exists reports whether key holds an unexpired entry
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	return ok && !c.expired(e), nil
}

// Len returns the number of stored entries, expired ones included until swept
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the sweeper. The cache stays usable.
func (c *MemoryCache) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *MemoryCache) expired(e entry) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}

func (c *MemoryCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *MemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, key)
		}
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
