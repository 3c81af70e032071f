package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	trailhead "github.com/eugener/trailhead/internal"
	"github.com/eugener/trailhead/internal/app"
	"github.com/eugener/trailhead/internal/storage"
	"github.com/eugener/trailhead/internal/telemetry"
)

// DefaultSyncInterval is how often activities are synced from upstream.
const DefaultSyncInterval = time.Hour

// ActivitySyncWorker periodically syncs every known athlete's activities
// into the database, so the dashboard keeps serving when upstream is down.
// An athlete whose refresh fails is skipped until the next cycle; there is
// no automatic recovery from a revoked refresh token.
type ActivitySyncWorker struct {
	progress *app.ProgressService
	creds    storage.CredentialStore
	interval time.Duration
	metrics  *telemetry.Metrics // nil = no metrics
}

// NewActivitySyncWorker creates an ActivitySyncWorker. interval 0 means
// DefaultSyncInterval; metrics may be nil.
func NewActivitySyncWorker(progress *app.ProgressService, creds storage.CredentialStore, interval time.Duration, metrics *telemetry.Metrics) *ActivitySyncWorker {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &ActivitySyncWorker{progress: progress, creds: creds, interval: interval, metrics: metrics}
}

// Run performs an initial sync, then syncs on a fixed interval until ctx is
// cancelled.
func (w *ActivitySyncWorker) Run(ctx context.Context) error {
	w.syncAll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.syncAll(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *ActivitySyncWorker) syncAll(ctx context.Context) {
	creds, err := w.creds.ListCredentials(ctx)
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "list credentials failed",
			slog.String("error", err.Error()),
		)
		return
	}

	for _, cred := range creds {
		n, err := w.progress.Sync(ctx, cred.AthleteID)
		switch {
		case err == nil:
			w.countSync("ok")
			slog.LogAttrs(ctx, slog.LevelInfo, "activities synced",
				slog.Int64("athlete_id", cred.AthleteID),
				slog.Int("matched", n),
			)
		case errors.Is(err, trailhead.ErrReauthRequired):
			w.countSync("reauth_required")
			slog.LogAttrs(ctx, slog.LevelWarn, "sync needs re-authentication",
				slog.Int64("athlete_id", cred.AthleteID),
			)
		default:
			w.countSync("error")
			slog.LogAttrs(ctx, slog.LevelError, "sync failed",
				slog.Int64("athlete_id", cred.AthleteID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (w *ActivitySyncWorker) countSync(outcome string) {
	if w.metrics != nil {
		w.metrics.SyncRuns.WithLabelValues(outcome).Inc()
	}
}
