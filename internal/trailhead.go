// Package trailhead defines domain types and interfaces for the trailhead
// dashboard. This package has no project imports -- it is the dependency root.
package trailhead

import (
	"context"
	"strings"
	"time"
)

// --- Credentials ---

// Credential is the stored OAuth credential for one athlete.
// ExpiresAt is an absolute instant in seconds since epoch, as issued by the
// upstream token endpoint.
type Credential struct {
	AthleteID    int64     `json:"athlete_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    int64     `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Token is a fresh access/refresh pair returned by the token issuer.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// --- Activities ---

// Activity is a single upstream activity. Field names follow the Strava
// activity summary representation; only the fields the dashboard consumes
// are decoded.
type Activity struct {
	ID            int64     `json:"id"`
	AthleteID     int64     `json:"athlete_id,omitempty"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	SportType     string    `json:"sport_type,omitempty"`
	Description   string    `json:"description,omitempty"`
	Distance      float64   `json:"distance"` // meters
	MovingTime    int64     `json:"moving_time"`
	ElapsedTime   int64     `json:"elapsed_time"`
	ElevationGain float64   `json:"total_elevation_gain"`
	StartDate     time.Time `json:"start_date"`
}

// DistanceKm returns the activity distance in kilometers.
func (a Activity) DistanceKm() float64 { return a.Distance / 1000 }

// Filter selects activities for the dashboard: the activity type must be in
// the allow-list AND the description must contain the marker substring
// (case-insensitive). Both conditions are required.
type Filter struct {
	Types  []string // allowed activity types, e.g. "Hike", "Walk"
	Marker string   // substring that must appear in the description
}

// Match reports whether the activity satisfies both filter conditions.
func (f Filter) Match(a Activity) bool {
	if !f.matchType(a.Type) {
		return false
	}
	return strings.Contains(strings.ToLower(a.Description), strings.ToLower(f.Marker))
}

func (f Filter) matchType(t string) bool {
	for _, allowed := range f.Types {
		if strings.EqualFold(allowed, t) {
			return true
		}
	}
	return false
}

// --- Progress ---

// Progress is the cumulative state toward the distance goal.
type Progress struct {
	AthleteID     int64      `json:"athlete_id"`
	GoalKm        float64    `json:"goal_km"`
	TotalKm       float64    `json:"total_km"`
	RemainingKm   float64    `json:"remaining_km"`
	Percent       float64    `json:"percent"`
	ActivityCount int        `json:"activity_count"`
	LastActivity  *time.Time `json:"last_activity,omitempty"`
}

// --- Context keys ---

type contextKey int

const ctxKeyRequestID contextKey = 0

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}
