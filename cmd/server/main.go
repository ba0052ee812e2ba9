package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pricealert/backend/config"
	httpDelivery "github.com/pricealert/backend/internal/delivery/http"
	"github.com/pricealert/backend/internal/domain"
	"github.com/pricealert/backend/internal/infrastructure/cache"
	"github.com/pricealert/backend/internal/infrastructure/mailer"
	"github.com/pricealert/backend/internal/infrastructure/scraper"
	"github.com/pricealert/backend/internal/infrastructure/store"
	"github.com/pricealert/backend/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting price alert backend",
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
		"store", cfg.Store.Type)

	ctx := context.Background()

	stateStore, err := store.Open(ctx, store.Config{
		Type: cfg.Store.Type,
		Path: cfg.Store.Path,
		DSN:  cfg.Store.DSN,
	})
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer stateStore.Close()

	client := scraper.NewClient(scraper.ClientConfig{
		UserAgent:      cfg.Scraper.UserAgent,
		AcceptLanguage: cfg.Scraper.AcceptLanguage,
		Timeout:        cfg.Scraper.RequestTimeout,
		RatePerSecond:  cfg.Scraper.RatePerSecond,
		Burst:          cfg.Scraper.Burst,
		MaxRetries:     cfg.Scraper.MaxRetries,
	}, logger)
	scrapers := usecase.NewScraperSet(
		scraper.NewDanawa(client, cfg.Scraper.DanawaSearchURL, logger),
		scraper.NewGmarket(client, cfg.Scraper.GmarketSearchURL, cfg.Scraper.GmarketItemURL, logger),
	)

	var emailer domain.Emailer
	if cfg.Email.Configured() {
		m, err := mailer.NewSMTPMailer(mailer.Config{
			Sender:   cfg.Email.Sender,
			Password: cfg.Email.Password,
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Timeout:  cfg.Email.Timeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("configure mailer: %w", err)
		}
		emailer = m
	} else {
		logger.Warn("email sender not configured, alerts are disabled")
	}

	candidateCache := cache.NewMemoryCache(cfg.Cache.CleanupInterval)
	defer candidateCache.Close()

	schedCfg := usecase.DefaultSchedulerConfig()
	schedCfg.PollInterval = cfg.Scheduler.PollInterval
	schedCfg.JitterMax = cfg.Scheduler.JitterMax
	schedCfg.StopTimeout = cfg.Scheduler.StopTimeout
	schedCfg.Policy.AutoRecover = cfg.Scheduler.AutoRecover
	schedCfg.Policy.StatusAlerts = cfg.Email.StatusAlerts
	schedCfg.Policy.BackoffLadder = cfg.Scheduler.BackoffLadder

	tracking := usecase.NewTrackingService(
		candidateCache,
		scrapers,
		stateStore,
		emailer,
		usecase.TrackingServiceConfig{
			CandidateTTL:   cfg.Cache.TTL,
			AllowedDomains: cfg.Email.AllowedDomains,
			Scheduler:      schedCfg,
		},
		logger,
	)
	tracking.SetObserver(statusLogger(logger))

	if err := tracking.RestoreSavedState(ctx); err != nil {
		logger.Warn("saved state could not be restored", "error", err)
	}

	handler := httpDelivery.NewHandler(tracking, logger)
	router := httpDelivery.SetupRouter(cfg, handler, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case s := <-sig:
		logger.Info("shutting down", "signal", s.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := tracking.Shutdown(); err != nil {
		logger.Warn("scheduler shutdown", "error", err)
	}
	return nil
}

// statusLogger reports status transitions of the tracking session
func statusLogger(logger *slog.Logger) usecase.Observer {
	var last domain.Status
	return func(st domain.TrackingState) {
		if st.Status == last {
			return
		}
		if last != "" {
			logger.Info("tracking status changed", "from", last, "to", st.Status, "keyword", st.Keyword)
		}
		last = st.Status
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
