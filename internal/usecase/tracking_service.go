package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pricealert/backend/internal/domain"
	"github.com/pricealert/backend/internal/infrastructure/mailer"
	"golang.org/x/sync/errgroup"
)

// MaxCandidateLimit caps how many candidates one site search may return
const MaxCandidateLimit = 50

// TrackingServiceConfig holds configuration for the tracking service
type TrackingServiceConfig struct {
	// CandidateTTL is how long search results stay selectable. Default: 1h.
	CandidateTTL time.Duration
	// AllowedDomains restricts recipient addresses. Empty accepts any domain.
	AllowedDomains []string
	Scheduler      SchedulerConfig
}

// SearchRequest asks for candidates on the given sites
type SearchRequest struct {
	Keyword string
	Sites   []domain.Site
	Limit   int
}

// StartRequest commits a selection and starts tracking.
// Zero intervals fall back to the defaults.
type StartRequest struct {
	Keyword        string
	CandidateIDs   []string
	CrawlInterval  int
	NotifyInterval int
	Email          string
}

// TrackingStatus is the snapshot shown to the user
type TrackingStatus struct {
	Running      bool                 `json:"running"`
	State        domain.TrackingState `json:"state"`
	NextCrawlAt  *time.Time           `json:"nextCrawlAt,omitempty"`
	NextNotifyAt *time.Time           `json:"nextNotifyAt,omitempty"`
}

// TrackingService owns the single tracking session: candidate search,
// selection commit and scheduler lifecycle.
type TrackingService struct {
	cache    domain.CacheRepository
	scrapers ScraperSet
	store    domain.StateStore
	emailer  domain.Emailer
	config   TrackingServiceConfig
	logger   *slog.Logger
	observer Observer

	// mu serializes lifecycle operations. scheduler is kept after a
	// timed-out stop until its loop has drained.
	mu        sync.Mutex
	scheduler *Scheduler

	snapshot atomic.Pointer[domain.TrackingState]
}

// NewTrackingService creates a tracking service with dependencies.
// emailer may be nil when no sender is configured; sending then fails
// with ErrInvalidConfiguration.
func NewTrackingService(
	cache domain.CacheRepository,
	scrapers ScraperSet,
	store domain.StateStore,
	emailer domain.Emailer,
	config TrackingServiceConfig,
	logger *slog.Logger,
) *TrackingService {
	if config.CandidateTTL <= 0 {
		config.CandidateTTL = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TrackingService{
		cache:    cache,
		scrapers: scrapers,
		store:    store,
		emailer:  emailer,
		config:   config,
		logger:   logger,
	}
}

// SetObserver registers a callback for every state change of future sessions
func (s *TrackingService) SetObserver(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// SearchCandidates searches every requested site in parallel.
// A failing site is logged and skipped; only when every site fails is
// the error returned. Results keep the requested site order.
func (s *TrackingService) SearchCandidates(ctx context.Context, req SearchRequest) ([]domain.Candidate, error) {
	keyword := NormalizeKeyword(req.Keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: keyword is required", domain.ErrInvalidRequest)
	}

	sites := req.Sites
	if len(sites) == 0 {
		sites = domain.AllSites
	}
	for _, site := range sites {
		if !site.Valid() {
			return nil, fmt.Errorf("%w: unknown site %q", domain.ErrInvalidRequest, site)
		}
		if _, ok := s.scrapers[site]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrSiteUnavailable, site)
		}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = domain.DefaultCandidateCount
	}
	limit = min(limit, MaxCandidateLimit)

	perSite := make([][]domain.Candidate, len(sites))
	errs := make([]error, len(sites))
	g, gctx := errgroup.WithContext(ctx)
	for i, site := range sites {
		g.Go(func() error {
			found, err := s.scrapers[site].Search(gctx, keyword, limit)
			if err != nil {
				s.logger.Warn("tracking: search failed", "site", site, "keyword", keyword, "error", err)
				errs[i] = err
				return nil
			}
			perSite[i] = found
			return nil
		})
	}
	_ = g.Wait()

	var candidates []domain.Candidate
	failed := 0
	for i := range sites {
		if errs[i] != nil {
			failed++
			continue
		}
		for _, c := range perSite[i] {
			c.ID = uuid.NewString()
			if err := s.rememberCandidate(ctx, c); err != nil {
				s.logger.Warn("tracking: cache candidate", "id", c.ID, "error", err)
			}
			candidates = append(candidates, c)
		}
	}

	if failed == len(sites) {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, errors.Join(errs...))
	}

	s.logger.Info("tracking: candidates found", "keyword", keyword, "count", len(candidates))
	if candidates == nil {
		candidates = []domain.Candidate{}
	}
	return candidates, nil
}

// StartTracking validates the selection, persists a fresh state and
// starts the scheduler.
func (s *TrackingService) StartTracking(ctx context.Context, req StartRequest) (*domain.TrackingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy() {
		return nil, domain.ErrAlreadyTracking
	}

	state, err := s.buildState(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, state); err != nil {
		s.logger.Error("tracking: persist new state", "error", err)
	}

	s.launch(*state)
	out := state.Clone()
	return &out, nil
}

func (s *TrackingService) buildState(ctx context.Context, req StartRequest) (*domain.TrackingState, error) {
	keyword := NormalizeKeyword(req.Keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: keyword is required", domain.ErrInvalidConfiguration)
	}

	crawl := req.CrawlInterval
	if crawl == 0 {
		crawl = domain.DefaultCrawlInterval
	}
	if !domain.ValidCrawlInterval(crawl) {
		return nil, fmt.Errorf("%w: crawl interval %d", domain.ErrInvalidConfiguration, crawl)
	}
	notify := req.NotifyInterval
	if notify == 0 {
		notify = domain.DefaultNotifyInterval
	}
	if !domain.ValidNotifyInterval(notify) {
		return nil, fmt.Errorf("%w: notify interval %d", domain.ErrInvalidConfiguration, notify)
	}

	if err := s.checkRecipient(req.Email); err != nil {
		return nil, err
	}

	if len(req.CandidateIDs) == 0 {
		return nil, fmt.Errorf("%w: select at least one product", domain.ErrInvalidConfiguration)
	}

	state := &domain.TrackingState{
		Keyword:          keyword,
		CrawlInterval:    crawl,
		NotifyInterval:   notify,
		Email:            req.Email,
		SelectedProducts: make(map[domain.Site]string),
		LastPrices:       make(map[domain.Site]int64),
		Status:           domain.StatusActive,
	}
	for _, id := range req.CandidateIDs {
		c, err := s.lookupCandidate(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, dup := state.SelectedProducts[c.Site]; dup {
			return nil, fmt.Errorf("%w: more than one product selected on %s", domain.ErrInvalidConfiguration, c.Site)
		}
		if _, ok := s.scrapers[c.Site]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrSiteUnavailable, c.Site)
		}
		state.SelectedSites = append(state.SelectedSites, c.Site)
		state.SelectedProducts[c.Site] = c.ProductURL
	}
	return state, nil
}

// StopTracking stops the running scheduler. The saved state is kept.
// Stopping when nothing runs is a no-op. After ErrStopTimeout, start and
// resume are refused until the old loop has finished its tick.
func (s *TrackingService) StopTracking(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler == nil {
		return nil
	}
	err := s.scheduler.Stop()
	if errors.Is(err, domain.ErrStopTimeout) {
		s.logger.Warn("tracking: scheduler did not stop in time, draining in background")
	}
	return err
}

// ResumeTracking restarts the scheduler from the saved state
func (s *TrackingService) ResumeTracking(ctx context.Context) (*domain.TrackingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy() {
		return nil, domain.ErrAlreadyTracking
	}

	state, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	state.Normalize()
	if err := validateSavedState(state); err != nil {
		return nil, err
	}

	s.launch(*state)
	out := state.Clone()
	return &out, nil
}

// ConfirmStatus clears needs_confirmation or blocked_suspected after the
// user checked the product. Returns false when there was nothing to clear.
func (s *TrackingService) ConfirmStatus(ctx context.Context) (bool, error) {
	s.mu.Lock()
	sched := s.scheduler
	s.mu.Unlock()

	if sched != nil && sched.Running() {
		return sched.Confirm(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return false, err
	}
	next, _, ok := ApplyConfirm(*state)
	if !ok {
		return false, nil
	}
	if err := s.store.Save(ctx, &next); err != nil {
		return false, err
	}
	s.publish(next)
	return true, nil
}

// Status returns the latest known state, falling back to the saved one
func (s *TrackingService) Status(ctx context.Context) (*TrackingStatus, error) {
	s.mu.Lock()
	sched := s.scheduler
	s.mu.Unlock()

	if snap := s.snapshot.Load(); snap != nil {
		status := &TrackingStatus{State: snap.Clone()}
		if sched != nil && sched.Running() {
			status.Running = true
			crawl, notify := sched.NextTicks()
			status.NextCrawlAt, status.NextNotifyAt = &crawl, &notify
		}
		return status, nil
	}

	state, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.publish(*state)
	return &TrackingStatus{State: state.Clone()}, nil
}

// RestoreSavedState loads the persisted state for display without
// starting the scheduler. A missing state is not an error.
func (s *TrackingService) RestoreSavedState(ctx context.Context) error {
	state, err := s.store.Load(ctx)
	if errors.Is(err, domain.ErrStateNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	state.Normalize()
	s.publish(*state)
	s.logger.Info("tracking: saved state restored", "keyword", state.Keyword, "status", state.Status)
	return nil
}

// DeleteTracking stops tracking and removes the saved state. A loop still
// draining after a timed-out stop discards its tick, so it cannot write the
// state back.
func (s *TrackingService) DeleteTracking(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		if err := s.scheduler.Stop(); err != nil {
			s.logger.Warn("tracking: stop before delete", "error", err)
		}
	}
	if err := s.store.Delete(ctx); err != nil {
		return err
	}
	s.snapshot.Store(nil)
	s.logger.Info("tracking: state deleted")
	return nil
}

// SendTestEmail sends the settings check message to recipient
func (s *TrackingService) SendTestEmail(ctx context.Context, recipient string) error {
	if err := s.checkRecipient(recipient); err != nil {
		return err
	}
	if s.emailer == nil {
		return fmt.Errorf("%w: no sender configured", domain.ErrInvalidConfiguration)
	}
	subject, body := TestEmail()
	return s.emailer.Send(ctx, recipient, subject, body)
}

// Shutdown stops any running scheduler
func (s *TrackingService) Shutdown() error {
	return s.StopTracking(context.Background())
}

// busy reports whether a scheduler is running or still draining. Caller holds mu.
func (s *TrackingService) busy() bool {
	return s.scheduler != nil && (s.scheduler.Running() || !s.scheduler.Drained())
}

// launch builds and starts a scheduler for state. Caller holds mu.
func (s *TrackingService) launch(state domain.TrackingState) {
	if s.emailer == nil {
		s.logger.Warn("tracking: no sender configured, alerts will not be delivered")
	}
	sched := NewScheduler(state, s.store, s.scrapers, s.emailerOrNoop(), s.config.Scheduler, s.logger)
	external := s.observer
	sched.SetObserver(func(st domain.TrackingState) {
		s.publish(st)
		if external != nil {
			external(st)
		}
	})
	s.publish(state)
	s.scheduler = sched
	sched.Start()
}

func (s *TrackingService) publish(state domain.TrackingState) {
	snap := state.Clone()
	s.snapshot.Store(&snap)
}

func (s *TrackingService) checkRecipient(addr string) error {
	if !mailer.ValidateAddress(addr) {
		return fmt.Errorf("%w: invalid email address", domain.ErrInvalidConfiguration)
	}
	if !mailer.DomainAllowed(addr, s.config.AllowedDomains) {
		return fmt.Errorf("%w: email domain not allowed", domain.ErrInvalidConfiguration)
	}
	return nil
}

func (s *TrackingService) emailerOrNoop() domain.Emailer {
	if s.emailer == nil {
		return unconfiguredEmailer{}
	}
	return s.emailer
}

type unconfiguredEmailer struct{}

func (unconfiguredEmailer) Send(context.Context, string, string, string) error {
	return fmt.Errorf("%w: no sender configured", domain.ErrEmailFailed)
}

func candidateKey(id string) string {
	return "candidate:" + id
}

func (s *TrackingService) rememberCandidate(ctx context.Context, c domain.Candidate) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, candidateKey(c.ID), data, s.config.CandidateTTL)
}

func (s *TrackingService) lookupCandidate(ctx context.Context, id string) (*domain.Candidate, error) {
	data, err := s.cache.Get(ctx, candidateKey(id))
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			return nil, fmt.Errorf("%w: %s", domain.ErrCandidateNotFound, id)
		}
		return nil, err
	}
	var c domain.Candidate
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrCandidateNotFound, id)
	}
	return &c, nil
}

func validateSavedState(st *domain.TrackingState) error {
	if st.Keyword == "" || len(st.SelectedProducts) == 0 {
		return fmt.Errorf("%w: saved state has no selection", domain.ErrInvalidConfiguration)
	}
	if !domain.ValidCrawlInterval(st.CrawlInterval) || !domain.ValidNotifyInterval(st.NotifyInterval) {
		return fmt.Errorf("%w: saved state has invalid intervals", domain.ErrInvalidConfiguration)
	}
	for site := range st.SelectedProducts {
		if !containsSite(st.SelectedSites, site) {
			return fmt.Errorf("%w: product for unselected site %s", domain.ErrInvalidConfiguration, site)
		}
	}
	return nil
}

func containsSite(sites []domain.Site, site domain.Site) bool {
	for _, s := range sites {
		if s == site {
			return true
		}
	}
	return false
}
