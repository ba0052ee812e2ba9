package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pricealert/backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

// SchedulerConfig configures the crawl/notify loop.
type SchedulerConfig struct {
	// PollInterval is how often the loop compares now against the next ticks. Default: 1s.
	PollInterval time.Duration
	// JitterMax bounds the random wait before each crawl tick. 0 disables jitter.
	JitterMax time.Duration
	// StopTimeout bounds how long Stop waits for an in-flight tick. Default: 5s.
	StopTimeout time.Duration
	// Unit is the length of one interval minute. Default: time.Minute.
	Unit time.Duration
	// Policy tunes the tracking state machine.
	Policy Policy
}

// DefaultSchedulerConfig returns the production timings.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		PollInterval: time.Second,
		JitterMax:    20 * time.Second,
		StopTimeout:  5 * time.Second,
		Unit:         time.Minute,
		Policy: Policy{
			BackoffLadder: DefaultBackoffLadder,
			AutoRecover:   true,
			StatusAlerts:  true,
		},
	}
}

func (c *SchedulerConfig) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 5 * time.Second
	}
	if c.Unit <= 0 {
		c.Unit = time.Minute
	}
	if c.JitterMax < 0 {
		c.JitterMax = 0
	}
	c.Policy.defaults()
}

// Observer receives a snapshot after every state-affecting event.
// It runs on the loop goroutine and must return quickly.
type Observer func(domain.TrackingState)

// ScraperSet maps each site to its scraper.
type ScraperSet map[domain.Site]domain.Scraper

// NewScraperSet indexes scrapers by the site they serve.
func NewScraperSet(scrapers ...domain.Scraper) ScraperSet {
	set := make(ScraperSet, len(scrapers))
	for _, sc := range scrapers {
		set[sc.Site()] = sc
	}
	return set
}

// Scheduler drives crawl and notify ticks for one tracking state.
//
// The loop goroutine owns the state: every mutation and every persistence
// call happens there. Start, Stop, Confirm and the read accessors are safe
// to call from other goroutines.
type Scheduler struct {
	store    domain.StateStore
	scrapers ScraperSet
	emailer  domain.Emailer
	observer Observer
	config   SchedulerConfig
	logger   *slog.Logger

	now    func() time.Time
	jitter func(max time.Duration) time.Duration

	// loop-owned
	state  domain.TrackingState
	titles map[domain.Site]string

	latest  atomic.Pointer[domain.TrackingState]
	running atomic.Bool
	confirm chan chan bool

	// commitMu orders closing stop against persisting a tick's results
	commitMu sync.Mutex

	mu           sync.Mutex
	stop         chan struct{}
	done         chan struct{}
	nextCrawlAt  time.Time
	nextNotifyAt time.Time
}

// NewScheduler creates a Scheduler for an already validated state.
func NewScheduler(
	state domain.TrackingState,
	store domain.StateStore,
	scrapers ScraperSet,
	emailer domain.Emailer,
	cfg SchedulerConfig,
	logger *slog.Logger,
) *Scheduler {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	st := state.Clone()
	st.Normalize()

	s := &Scheduler{
		store:    store,
		scrapers: scrapers,
		emailer:  emailer,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
		jitter:   uniformJitter,
		state:    st,
		titles:   make(map[domain.Site]string),
		confirm:  make(chan chan bool),
	}
	s.publish()
	return s
}

// SetObserver registers the single observer. Call before Start.
func (s *Scheduler) SetObserver(fn Observer) {
	s.observer = fn
}

// Start launches the loop. Both ticks fire on the first poll.
// Starting a running scheduler only logs a warning.
func (s *Scheduler) Start() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("scheduler: already running")
		return
	}

	s.mu.Lock()
	if s.done != nil {
		select {
		case <-s.done:
		default:
			s.mu.Unlock()
			s.running.Store(false)
			s.logger.Warn("scheduler: previous loop still draining, start ignored")
			return
		}
	}
	now := s.now()
	s.nextCrawlAt = now
	s.nextNotifyAt = now
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done
	s.mu.Unlock()

	go s.run(stop, done)
	s.logger.Info("scheduler: started",
		"keyword", s.state.Keyword,
		"crawl_interval_min", s.state.CrawlInterval,
		"notify_interval_min", s.state.NotifyInterval)
}

// Stop signals the loop and waits up to StopTimeout for the current tick.
// ErrStopTimeout means the loop is still finishing its tick in the background;
// whatever that tick produces is discarded. Once Stop returns nothing more is
// persisted or observed. Stopping a scheduler that is not running is a no-op.
func (s *Scheduler) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.mu.Lock()
	stop, done := s.stop, s.done
	s.mu.Unlock()

	s.commitMu.Lock()
	close(stop)
	s.commitMu.Unlock()

	timer := time.NewTimer(s.config.StopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		s.logger.Info("scheduler: stopped")
		return nil
	case <-timer.C:
		s.logger.Warn("scheduler: stop timed out, tick still in flight", "timeout", s.config.StopTimeout)
		return domain.ErrStopTimeout
	}
}

// Running reports whether the loop has been started and not stopped.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Drained reports whether no loop goroutine is left, including one that
// outlived a timed-out Stop.
func (s *Scheduler) Drained() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	return done == nil || stopped(done)
}

// NextTicks returns when the next crawl and notify ticks are due.
func (s *Scheduler) NextTicks() (crawl, notify time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextCrawlAt, s.nextNotifyAt
}

// State returns a copy of the most recent tracking state.
func (s *Scheduler) State() domain.TrackingState {
	return s.latest.Load().Clone()
}

// Confirm asks the loop to clear a suspicion status between ticks.
// Returns false when the status did not need confirmation.
func (s *Scheduler) Confirm(ctx context.Context) (bool, error) {
	if !s.running.Load() {
		return false, domain.ErrNotTracking
	}
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	reply := make(chan bool, 1)
	select {
	case s.confirm <- reply:
	case <-done:
		return false, domain.ErrNotTracking
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (s *Scheduler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		s.poll(stop)

		select {
		case <-stop:
			return
		case reply := <-s.confirm:
			reply <- s.applyConfirm(stop)
		case <-ticker.C:
		}
	}
}

// poll runs whichever ticks are due. Panics inside a tick are logged and
// the loop carries on with the next schedule.
func (s *Scheduler) poll(stop <-chan struct{}) {
	if stopped(stop) {
		return
	}
	now := s.now()
	crawlAt, notifyAt := s.NextTicks()

	if !now.Before(crawlAt) {
		completed := true
		s.guard("crawl", func() { completed = s.crawlTick(stop) })
		if !completed {
			return
		}
		s.scheduleNextCrawl()
	}

	if stopped(stop) {
		return
	}

	if !now.Before(notifyAt) {
		s.guard("notify", func() { s.notifyTick(stop) })
		s.scheduleNextNotify()
	}
}

func (s *Scheduler) guard(tick string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler: tick panicked", "tick", tick, "panic", r)
		}
	}()
	fn()
}

// crawlTick waits for jitter, fetches every tracked site and folds the
// results into the state. Returns false when a stop arrived during jitter
// or while fetching, in which case the state is left untouched.
func (s *Scheduler) crawlTick(stop <-chan struct{}) bool {
	wait := s.jitter(s.config.JitterMax)
	if wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			s.logger.Info("scheduler: crawl aborted during jitter")
			return false
		case <-timer.C:
		}
	}

	tickID := uuid.NewString()
	s.logger.Info("scheduler: crawl started", "tick", tickID, "jitter", wait)

	outcomes := s.fetchAll(context.Background())
	if stopped(stop) {
		s.logger.Info("scheduler: crawl results discarded after stop", "tick", tickID)
		return false
	}
	tr := ApplyCrawl(s.state, outcomes, s.titles, s.config.Policy, s.now())

	for _, site := range tr.Failed {
		s.logger.Warn("scheduler: fetch failed", "tick", tickID, "site", site, "backoff_count", tr.State.BackoffCount)
	}
	for _, a := range tr.Anomalies {
		s.logger.Warn("scheduler: suspicious result",
			"tick", tickID, "site", a.Site, "reason", a.Reason,
			"old_price", a.OldPrice, "new_price", a.NewPrice)
	}
	if tr.State.Status == domain.StatusBlockedSuspected && s.state.Status != domain.StatusBlockedSuspected {
		s.logger.Warn("scheduler: blocking suspected", "tick", tickID)
	}

	if !s.execute(stop, tr.Intents) {
		return false
	}
	s.state = tr.State
	s.titles = tr.Titles
	s.publish()

	s.logger.Info("scheduler: crawl finished",
		"tick", tickID,
		"succeeded", len(tr.Succeeded),
		"failed", len(tr.Failed),
		"status", s.state.Status)
	return true
}

type fetchTarget struct {
	site    domain.Site
	url     string
	scraper domain.Scraper
}

// fetchAll fetches every tracked site concurrently. Results come back in
// selectedSites order; sites without a scraper are skipped.
func (s *Scheduler) fetchAll(ctx context.Context) []SiteOutcome {
	var targets []fetchTarget
	for _, site := range s.state.SelectedSites {
		url, ok := s.state.SelectedProducts[site]
		if !ok {
			continue
		}
		sc, ok := s.scrapers[site]
		if !ok {
			s.logger.Warn("scheduler: no scraper for site", "site", site)
			continue
		}
		targets = append(targets, fetchTarget{site: site, url: url, scraper: sc})
	}

	outcomes := make([]SiteOutcome, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			outcomes[i] = fetchOne(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func fetchOne(ctx context.Context, t fetchTarget) (out SiteOutcome) {
	out.Site = t.site
	defer func() {
		if r := recover(); r != nil {
			out.Result = nil
			out.Err = fmt.Errorf("%w: scraper panic: %v", domain.ErrFetchFailed, r)
		}
	}()
	out.Result, out.Err = t.scraper.Fetch(ctx, t.url)
	return out
}

// notifyTick emails the latest prices while the status is active.
func (s *Scheduler) notifyTick(stop <-chan struct{}) {
	results, skip := PlanNotify(s.state, s.titles, s.now())
	if skip != NotifySkipNone {
		s.logger.Info("scheduler: notify skipped", "reason", string(skip), "status", s.state.Status)
		return
	}

	subject, body, err := PriceAlertEmail(s.state.Keyword, results)
	if err != nil {
		s.logger.Error("scheduler: compose price alert", "error", err)
		return
	}
	if err := s.emailer.Send(context.Background(), s.state.Email, subject, body); err != nil {
		s.logger.Error("scheduler: price alert not sent", "recipient", s.state.Email, "error", err)
		return
	}

	st, intents := ApplyNotifySent(s.state, s.now())
	if !s.execute(stop, intents) {
		return
	}
	s.state = st
	s.publish()
	s.logger.Info("scheduler: price alert sent", "recipient", s.state.Email, "sites", len(results))
}

func (s *Scheduler) applyConfirm(stop <-chan struct{}) bool {
	st, intents, ok := ApplyConfirm(s.state)
	if !ok {
		return false
	}
	if !s.execute(stop, intents) {
		return false
	}
	s.state = st
	s.publish()
	s.logger.Info("scheduler: status confirmed", "status", s.state.Status)
	return true
}

// execute runs side-effect intents in order. Persistence failures are
// logged; the in-memory state stays authoritative until the next save.
// Returns false without running anything once stop is closed.
func (s *Scheduler) execute(stop <-chan struct{}, intents []Intent) bool {
	ctx := context.Background()
	var alerts []Intent

	s.commitMu.Lock()
	if stopped(stop) {
		s.commitMu.Unlock()
		s.logger.Info("scheduler: tick results discarded after stop")
		return false
	}
	for _, in := range intents {
		switch in.Kind {
		case IntentPersist:
			snap := in.State
			if err := s.store.Save(ctx, &snap); err != nil {
				s.logger.Error("scheduler: persist state", "error", err)
			}
		case IntentObserve:
			if s.observer != nil {
				s.observer(in.State)
			}
		case IntentStatusAlert:
			alerts = append(alerts, in)
		}
	}
	s.commitMu.Unlock()

	for _, in := range alerts {
		s.sendStatusAlert(ctx, in)
	}
	return true
}

func (s *Scheduler) sendStatusAlert(ctx context.Context, in Intent) {
	subject, body, err := StatusAlertEmail(in.State.Keyword, in.State.Status, in.Message)
	if err != nil {
		s.logger.Error("scheduler: compose status alert", "error", err)
		return
	}
	if err := s.emailer.Send(ctx, in.State.Email, subject, body); err != nil {
		s.logger.Error("scheduler: status alert not sent", "status", in.State.Status, "error", err)
		return
	}
	s.logger.Info("scheduler: status alert sent", "status", in.State.Status)
}

func (s *Scheduler) scheduleNextCrawl() {
	minutes := NextCrawlDelay(s.state, s.config.Policy.BackoffLadder)
	if s.state.BackoffCount > 0 {
		s.logger.Info("scheduler: backoff applied", "backoff_count", s.state.BackoffCount, "delay_min", minutes)
	}
	next := s.now().Add(time.Duration(minutes) * s.config.Unit)

	s.mu.Lock()
	s.nextCrawlAt = next
	s.mu.Unlock()
}

func (s *Scheduler) scheduleNextNotify() {
	next := s.now().Add(time.Duration(s.state.NotifyInterval) * s.config.Unit)

	s.mu.Lock()
	s.nextNotifyAt = next
	s.mu.Unlock()
}

func (s *Scheduler) publish() {
	snap := s.state.Clone()
	s.latest.Store(&snap)
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// uniformJitter draws a duration uniformly from [0, max].
func uniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max) + 1))
}
