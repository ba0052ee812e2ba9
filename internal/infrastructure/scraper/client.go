package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pricealert/backend/internal/domain"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// Defaults for outbound page requests
const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultAcceptLanguage = "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"
	DefaultTimeout        = 15 * time.Second
	DefaultMaxRetries     = 2
)

// ClientConfig configures the shared page client
type ClientConfig struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	// RatePerSecond and Burst throttle requests across all sites
	RatePerSecond float64
	Burst         int
	MaxRetries    int
	// RetryDelay is multiplied by the attempt number between retries
	RetryDelay time.Duration
}

func (c *ClientConfig) defaults() {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.AcceptLanguage == "" {
		c.AcceptLanguage = DefaultAcceptLanguage
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 1
	}
	if c.Burst <= 0 {
		c.Burst = 2
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
}

// Client fetches HTML pages with browser-like headers, rate limiting and
// retries, and hands back parsed documents.
type Client struct {
	httpClient  *http.Client
	config      ClientConfig
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a page client
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		config:      cfg,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:      logger,
	}
}

// Document GETs pageURL and parses it. Transport errors and 5xx responses
// are retried; 404 maps to ErrProductNotFound and other 4xx to
// ErrSiteUnavailable without retry.
func (c *Client) Document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries+1; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, time.Duration(attempt-1)*c.config.RetryDelay); err != nil {
				return nil, err
			}
		}
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		doc, retry, err := c.get(ctx, pageURL)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		c.logger.Warn("scraper: request failed", "url", pageURL, "attempt", attempt, "error", err)
		if !retry {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) get(ctx context.Context, pageURL string) (*goquery.Document, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: build request: %v", domain.ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept-Language", c.config.AcceptLanguage)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, domain.ErrProductNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("%w: status %d", domain.ErrFetchFailed, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("%w: status %d", domain.ErrSiteUnavailable, resp.StatusCode)
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, false, fmt.Errorf("%w: decode charset: %v", domain.ErrFetchFailed, err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: parse html: %v", domain.ErrFetchFailed, err)
	}
	return doc, false, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
