// Package storage defines persistence interfaces for the dashboard.
package storage

import (
	"context"

	trailhead "github.com/eugener/trailhead/internal"
)

// CredentialStore manages OAuth credential persistence, keyed by athlete.
type CredentialStore interface {
	GetCredential(ctx context.Context, athleteID int64) (*trailhead.Credential, error)
	ListCredentials(ctx context.Context) ([]*trailhead.Credential, error)
	UpsertCredential(ctx context.Context, cred *trailhead.Credential) error
	UpdateTokens(ctx context.Context, athleteID int64, tok *trailhead.Token) error
	DeleteCredential(ctx context.Context, athleteID int64) error
}

// ActivityStore manages persisted activity records.
type ActivityStore interface {
	UpsertActivities(ctx context.Context, athleteID int64, acts []trailhead.Activity) error
	ListActivities(ctx context.Context, athleteID int64) ([]trailhead.Activity, error)
	SumDistance(ctx context.Context, athleteID int64) (float64, error)
	CountActivities(ctx context.Context, athleteID int64) (int, error)
}

// Store combines all storage interfaces.
type Store interface {
	CredentialStore
	ActivityStore
	Close() error
}
