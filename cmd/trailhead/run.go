package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/dnscache"
	"golang.org/x/oauth2"

	trailhead "github.com/eugener/trailhead/internal"
	"github.com/eugener/trailhead/internal/app"
	"github.com/eugener/trailhead/internal/cache"
	"github.com/eugener/trailhead/internal/circuitbreaker"
	"github.com/eugener/trailhead/internal/config"
	"github.com/eugener/trailhead/internal/ratelimit"
	"github.com/eugener/trailhead/internal/server"
	"github.com/eugener/trailhead/internal/storage/sqlite"
	"github.com/eugener/trailhead/internal/strava"
	"github.com/eugener/trailhead/internal/telemetry"
	"github.com/eugener/trailhead/internal/token"
	"github.com/eugener/trailhead/internal/worker"
)

const defaultAuthorizeURL = "https://www.strava.com/oauth/authorize"

func run(configPath string) error {
	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("starting trailhead", "version", version, "addr", cfg.Server.Addr)

	// Tracing
	ctx := context.Background()
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	// Open database
	store, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	// Bootstrap from config
	if err := config.Bootstrap(ctx, cfg, store); err != nil {
		return err
	}

	// Metrics
	var metrics *telemetry.Metrics
	if cfg.Telemetry.Metrics.Enabled {
		metrics = telemetry.NewMetrics(prometheus.DefaultRegisterer)
	}

	// Upstream clients share one pooled transport with cached DNS lookups,
	// charged against the local request budget before anything hits the wire.
	resolver := &dnscache.Resolver{}
	limiter := ratelimit.NewLimiter(ratelimit.Budget{
		Window: cfg.Strava.Budget.Window,
		Daily:  cfg.Strava.Budget.Daily,
	})
	httpClient := &http.Client{
		Transport: ratelimit.NewTransport(strava.NewTransport(resolver), limiter),
		Timeout:   30 * time.Second,
	}
	apiClient := strava.New(cfg.Strava.BaseURL, httpClient)
	tokenClient := strava.NewTokenClient(cfg.Strava.ClientID, cfg.Strava.ClientSecret, cfg.Strava.TokenURL, httpClient)

	// Wire services
	guardian := token.NewGuardian(tokenClient)
	activityCache := cache.New(cache.Options[[]trailhead.Activity]{
		MaxSize: cfg.Cache.MaxSize,
	})
	filter := trailhead.Filter{
		Types:  cfg.Goal.ActivityTypes,
		Marker: cfg.Goal.Marker,
	}
	lister := app.NewGuardedLister(apiClient, circuitbreaker.NewBreaker(circuitbreaker.DefaultConfig()))
	fetcher := app.NewFetcher(guardian, lister, store, activityCache, filter, metrics)
	fetcher.SetTTLs(cfg.Cache.FilteredTTL, cfg.Cache.RawTTL)
	progress := app.NewProgressService(fetcher, store, cfg.Goal.DistanceKm)

	// Browser login flow, only when a callback URL is configured.
	var authFlow *server.AuthFlow
	if cfg.Strava.RedirectURL != "" {
		authorizeURL := cfg.Strava.AuthorizeURL
		if authorizeURL == "" {
			authorizeURL = defaultAuthorizeURL
		}
		tokenURL := cfg.Strava.TokenURL
		if tokenURL == "" {
			tokenURL = strava.DefaultTokenURL
		}
		authFlow, err = server.NewAuthFlow(&oauth2.Config{
			ClientID:     cfg.Strava.ClientID,
			ClientSecret: cfg.Strava.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authorizeURL,
				TokenURL: tokenURL,
			},
			RedirectURL: cfg.Strava.RedirectURL,
			Scopes:      []string{"activity:read_all"},
		}, store)
		if err != nil {
			return err
		}
	}

	// Create HTTP server
	handler := server.New(server.Deps{
		Progress:   progress,
		Creds:      store,
		Cache:      activityCache,
		Auth:       authFlow,
		ReadyCheck: store.Ping,
		Metrics:    metrics,
		AdminKey:   cfg.Admin.Key,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Background workers
	workers := []worker.Worker{
		worker.NewCacheSweepWorker(activityCache, cfg.Cache.SweepInterval, metrics),
	}
	if cfg.Sync.IsEnabled() {
		workers = append(workers, worker.NewActivitySyncWorker(progress, store, cfg.Sync.Interval, metrics))
	}
	runner := worker.NewRunner(workers...)

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- runner.Run(workerCtx)
	}()

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("trailhead ready", "addr", cfg.Server.Addr)

	// Wait for signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		cancelWorkers()
		<-workerDone
		return err
	}

	// Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	cancelWorkers()
	if err := <-workerDone; err != nil {
		return err
	}

	slog.Info("trailhead stopped")
	return nil
}
