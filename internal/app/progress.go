package app

import (
	"context"
	"fmt"
	"math"

	trailhead "github.com/eugener/trailhead/internal"
	"github.com/eugener/trailhead/internal/storage"
)

// ProgressService reports cumulative progress toward the distance goal and
// keeps the persisted activity set in sync with upstream.
type ProgressService struct {
	fetcher *Fetcher
	store   storage.Store
	goalKm  float64
}

// NewProgressService creates a ProgressService with the configured goal.
func NewProgressService(fetcher *Fetcher, store storage.Store, goalKm float64) *ProgressService {
	return &ProgressService{fetcher: fetcher, store: store, goalKm: goalKm}
}

// Sync fetches the athlete's filtered activities (through the cache) and
// persists them. Returns the number of activities currently matching the
// filter.
func (s *ProgressService) Sync(ctx context.Context, athleteID int64) (int, error) {
	acts, err := s.fetcher.FilteredActivities(ctx, athleteID)
	if err != nil {
		return 0, err
	}
	if err := s.store.UpsertActivities(ctx, athleteID, acts); err != nil {
		return 0, fmt.Errorf("persist activities: %w", err)
	}
	return len(acts), nil
}

// ForceSync drops the athlete's cache entries and syncs from upstream.
func (s *ProgressService) ForceSync(ctx context.Context, athleteID int64) (int, error) {
	s.fetcher.Invalidate(athleteID)
	return s.Sync(ctx, athleteID)
}

// Progress computes the athlete's cumulative state from persisted
// activities. It never calls upstream, so the dashboard keeps working when
// the API is down.
func (s *ProgressService) Progress(ctx context.Context, athleteID int64) (*trailhead.Progress, error) {
	meters, err := s.store.SumDistance(ctx, athleteID)
	if err != nil {
		return nil, fmt.Errorf("sum distance: %w", err)
	}
	count, err := s.store.CountActivities(ctx, athleteID)
	if err != nil {
		return nil, fmt.Errorf("count activities: %w", err)
	}

	totalKm := meters / 1000
	p := &trailhead.Progress{
		AthleteID:     athleteID,
		GoalKm:        s.goalKm,
		TotalKm:       round2(totalKm),
		RemainingKm:   round2(math.Max(0, s.goalKm-totalKm)),
		ActivityCount: count,
	}
	if s.goalKm > 0 {
		p.Percent = round2(totalKm / s.goalKm * 100)
	}

	if count > 0 {
		acts, err := s.store.ListActivities(ctx, athleteID)
		if err != nil {
			return nil, fmt.Errorf("list activities: %w", err)
		}
		last := acts[0].StartDate
		p.LastActivity = &last
	}
	return p, nil
}

// Activities returns the athlete's persisted activities, newest first.
func (s *ProgressService) Activities(ctx context.Context, athleteID int64) ([]trailhead.Activity, error) {
	return s.store.ListActivities(ctx, athleteID)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
