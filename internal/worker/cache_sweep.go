package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/eugener/trailhead/internal/cache"
	"github.com/eugener/trailhead/internal/telemetry"
)

// DefaultSweepInterval is how often the cache sweep runs.
const DefaultSweepInterval = 5 * time.Minute

// Sweepable is the cache surface the sweep needs.
type Sweepable interface {
	Cleanup() int
	Stats() cache.Stats
}

// CacheSweepWorker periodically sweeps expired cache entries so memory does
// not grow for keys that are set once and never read again. The sweep runs
// on its own timer, independent of request traffic.
type CacheSweepWorker struct {
	cache    Sweepable
	interval time.Duration
	metrics  *telemetry.Metrics // nil = no metrics
}

// NewCacheSweepWorker creates a CacheSweepWorker. interval 0 means
// DefaultSweepInterval; metrics may be nil.
func NewCacheSweepWorker(c Sweepable, interval time.Duration, metrics *telemetry.Metrics) *CacheSweepWorker {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &CacheSweepWorker{cache: c, interval: interval, metrics: metrics}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (w *CacheSweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *CacheSweepWorker) sweep(ctx context.Context) {
	removed := w.cache.Cleanup()
	stats := w.cache.Stats()
	if removed > 0 {
		slog.LogAttrs(ctx, slog.LevelInfo, "cache sweep",
			slog.Int("removed", removed),
			slog.Int("remaining", stats.Size),
		)
	}
	if w.metrics != nil {
		w.metrics.CacheEntries.Set(float64(stats.Size))
		w.metrics.CacheMemoryBytes.Set(float64(stats.Memory))
	}
}
