// Package server implements the HTTP transport layer for the trailhead dashboard.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	trailhead "github.com/eugener/trailhead/internal"
	"github.com/eugener/trailhead/internal/cache"
	"github.com/eugener/trailhead/internal/storage"
	"github.com/eugener/trailhead/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// ProgressReader serves dashboard reads and manual refreshes.
type ProgressReader interface {
	Progress(ctx context.Context, athleteID int64) (*trailhead.Progress, error)
	Activities(ctx context.Context, athleteID int64) ([]trailhead.Activity, error)
	ForceSync(ctx context.Context, athleteID int64) (int, error)
}

// CacheAdmin exposes the response cache to the admin endpoints.
type CacheAdmin interface {
	Stats() cache.Stats
	Info(key string) cache.Info
	Clear() (items int, bytes int64)
}

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Progress   ProgressReader
	Creds      storage.CredentialStore
	Cache      CacheAdmin         // nil = admin cache routes disabled
	Auth       *AuthFlow          // nil = browser login flow disabled
	ReadyCheck ReadyChecker       // nil = always ready (for tests)
	Metrics    *telemetry.Metrics // nil = no metrics
	AdminKey   string             // "" = admin routes disabled
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// System endpoints (no auth)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Dashboard API
	r.Get("/api/progress", s.handleProgress)
	r.Get("/api/activities", s.handleActivities)
	r.Post("/api/refresh", s.handleRefresh)

	// Browser login flow
	if deps.Auth != nil {
		r.Get("/auth/strava/login", s.handleLogin)
		r.Get("/auth/strava/callback", s.handleCallback)
	}

	// Admin endpoints (bearer key required)
	if deps.AdminKey != "" && deps.Cache != nil {
		r.Group(func(r chi.Router) {
			r.Use(s.adminAuth)
			r.Get("/admin/cache/stats", s.handleCacheStats)
			r.Get("/admin/cache/info", s.handleCacheInfo)
			r.Delete("/admin/cache", s.handleCacheClear)
		})
	}

	return r
}

type server struct {
	deps Deps
}
