package sqlite

import (
	"context"
	"fmt"
	"time"

	trailhead "github.com/eugener/trailhead/internal"
)

// UpsertActivities inserts or replaces the given activities for an athlete
// in a single transaction. Re-syncing the same activity is an update, so the
// sync worker can run repeatedly without duplicating rows.
func (s *Store) UpsertActivities(ctx context.Context, athleteID int64, acts []trailhead.Activity) error {
	if len(acts) == 0 {
		return nil
	}

	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO activities (id, athlete_id, name, type, sport_type, description,
		 distance, moving_time, elapsed_time, elevation_gain, start_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name,
		   type=excluded.type,
		   sport_type=excluded.sport_type,
		   description=excluded.description,
		   distance=excluded.distance,
		   moving_time=excluded.moving_time,
		   elapsed_time=excluded.elapsed_time,
		   elevation_gain=excluded.elevation_gain,
		   start_date=excluded.start_date`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, a := range acts {
		_, err := stmt.ExecContext(ctx,
			a.ID, athleteID, a.Name, a.Type, a.SportType, a.Description,
			a.Distance, a.MovingTime, a.ElapsedTime, a.ElevationGain,
			a.StartDate.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("upsert activity %d: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// ListActivities returns an athlete's persisted activities, newest first.
func (s *Store) ListActivities(ctx context.Context, athleteID int64) ([]trailhead.Activity, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT id, athlete_id, name, type, sport_type, description,
		 distance, moving_time, elapsed_time, elevation_gain, start_date
		 FROM activities WHERE athlete_id = ? ORDER BY start_date DESC`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var acts []trailhead.Activity
	for rows.Next() {
		var a trailhead.Activity
		var startDate string
		err := rows.Scan(&a.ID, &a.AthleteID, &a.Name, &a.Type, &a.SportType,
			&a.Description, &a.Distance, &a.MovingTime, &a.ElapsedTime,
			&a.ElevationGain, &startDate)
		if err != nil {
			return nil, err
		}
		a.StartDate, _ = time.Parse(time.RFC3339, startDate)
		acts = append(acts, a)
	}
	return acts, rows.Err()
}

// SumDistance returns the total persisted distance for an athlete in meters.
func (s *Store) SumDistance(ctx context.Context, athleteID int64) (float64, error) {
	var total float64
	err := s.read.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(distance), 0) FROM activities WHERE athlete_id = ?`,
		athleteID).Scan(&total)
	return total, err
}

// CountActivities returns how many activities are persisted for an athlete.
func (s *Store) CountActivities(ctx context.Context, athleteID int64) (int, error) {
	var n int
	err := s.read.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activities WHERE athlete_id = ?`, athleteID).Scan(&n)
	return n, err
}
