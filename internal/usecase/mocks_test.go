package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/pricealert/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu       sync.Mutex
	data     map[string][]byte
	getError error
	setError error
	sets     int
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{data: make(map[string][]byte)}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

// MockScraper serves canned search results and prices for one site
type MockScraper struct {
	site domain.Site

	mu          sync.Mutex
	candidates  []domain.Candidate
	searchError error
	fetch       func(ctx context.Context, url string) (*domain.PriceResult, error)
	fetches     int
}

func NewMockScraper(site domain.Site) *MockScraper {
	return &MockScraper{site: site}
}

func (m *MockScraper) Site() domain.Site { return m.site }

func (m *MockScraper) Search(ctx context.Context, keyword string, limit int) ([]domain.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchError != nil {
		return nil, m.searchError
	}
	out := append([]domain.Candidate(nil), m.candidates...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockScraper) Fetch(ctx context.Context, url string) (*domain.PriceResult, error) {
	m.mu.Lock()
	m.fetches++
	fn := m.fetch
	m.mu.Unlock()
	if fn == nil {
		return nil, domain.ErrFetchFailed
	}
	return fn(ctx, url)
}

func (m *MockScraper) setFetch(fn func(ctx context.Context, url string) (*domain.PriceResult, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetch = fn
}

func (m *MockScraper) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// priceOf returns a fetch func that always reports price
func priceOf(site domain.Site, title string, price int64) func(context.Context, string) (*domain.PriceResult, error) {
	return func(_ context.Context, url string) (*domain.PriceResult, error) {
		return &domain.PriceResult{Site: site, Title: title, Price: price, ProductURL: url, FetchedAt: time.Now()}, nil
	}
}

// MockStateStore keeps the state in memory
type MockStateStore struct {
	mu        sync.Mutex
	state     *domain.TrackingState
	saves     int
	saveError error
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{}
}

func (m *MockStateStore) Save(ctx context.Context, state *domain.TrackingState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveError != nil {
		return m.saveError
	}
	cp := state.Clone()
	m.state = &cp
	return nil
}

func (m *MockStateStore) Load(ctx context.Context) (*domain.TrackingState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, domain.ErrStateNotFound
	}
	cp := m.state.Clone()
	return &cp, nil
}

func (m *MockStateStore) Exists(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != nil, nil
}

func (m *MockStateStore) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	return nil
}

func (m *MockStateStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Saved returns a copy of the persisted state, or nil
func (m *MockStateStore) Saved() *domain.TrackingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil
	}
	cp := m.state.Clone()
	return &cp
}

type sentMail struct {
	to, subject, body string
}

// MockEmailer records every message
type MockEmailer struct {
	mu        sync.Mutex
	sent      []sentMail
	sendError error
}

func (m *MockEmailer) Send(ctx context.Context, recipient, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendError != nil {
		return m.sendError
	}
	m.sent = append(m.sent, sentMail{to: recipient, subject: subject, body: body})
	return nil
}

func (m *MockEmailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}
