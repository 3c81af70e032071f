package config

import (
	"context"
	"log/slog"
	"time"

	trailhead "github.com/eugener/trailhead/internal"
	"github.com/eugener/trailhead/internal/storage"
)

// Bootstrap seeds the database from the config file on first run.
// A seed entry lets headless installs start with an existing token pair
// instead of going through the browser login flow.
func Bootstrap(ctx context.Context, cfg *Config, store storage.Store) error {
	if cfg.Seed == nil {
		return nil
	}
	s := cfg.Seed

	existing, _ := store.GetCredential(ctx, s.AthleteID)
	if existing != nil {
		return nil // already present, never overwrite live tokens
	}

	cred := &trailhead.Credential{
		AthleteID:    s.AthleteID,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := store.UpsertCredential(ctx, cred); err != nil {
		return err
	}
	slog.Info("bootstrapped credential", "athlete_id", s.AthleteID)
	return nil
}
