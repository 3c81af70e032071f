// Package testutil provides configurable test fakes for trailhead interfaces.
package testutil

import (
	"context"
	"fmt"
	"sync"

	trailhead "github.com/eugener/trailhead/internal"
)

// FakeStore is an in-memory implementation of storage.Store for testing.
type FakeStore struct {
	mu         sync.RWMutex
	creds      map[int64]*trailhead.Credential
	activities map[int64]map[int64]trailhead.Activity // athlete -> activity ID -> activity

	UpdateTokensErr error // forces UpdateTokens to fail
	TokenWrites     int   // count of UpdateTokens calls
}

// NewFakeStore returns a FakeStore with empty collections.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		creds:      make(map[int64]*trailhead.Credential),
		activities: make(map[int64]map[int64]trailhead.Activity),
	}
}

// --- CredentialStore ---

// GetCredential returns a copy of the stored credential.
func (s *FakeStore) GetCredential(_ context.Context, athleteID int64) (*trailhead.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[athleteID]
	if !ok {
		return nil, fmt.Errorf("credential: %w", trailhead.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

// ListCredentials returns all stored credentials.
func (s *FakeStore) ListCredentials(context.Context) ([]*trailhead.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*trailhead.Credential, 0, len(s.creds))
	for _, c := range s.creds {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// UpsertCredential stores a credential.
func (s *FakeStore) UpsertCredential(_ context.Context, cred *trailhead.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cred
	s.creds[cred.AthleteID] = &cp
	return nil
}

// UpdateTokens writes a refreshed triple, or fails with UpdateTokensErr.
func (s *FakeStore) UpdateTokens(_ context.Context, athleteID int64, tok *trailhead.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TokenWrites++
	if s.UpdateTokensErr != nil {
		return s.UpdateTokensErr
	}
	c, ok := s.creds[athleteID]
	if !ok {
		return fmt.Errorf("credential: %w", trailhead.ErrNotFound)
	}
	c.AccessToken = tok.AccessToken
	c.RefreshToken = tok.RefreshToken
	c.ExpiresAt = tok.ExpiresAt
	return nil
}

// DeleteCredential removes a credential.
func (s *FakeStore) DeleteCredential(_ context.Context, athleteID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.creds[athleteID]; !ok {
		return fmt.Errorf("credential: %w", trailhead.ErrNotFound)
	}
	delete(s.creds, athleteID)
	return nil
}

// --- ActivityStore ---

// UpsertActivities stores activities keyed by ID.
func (s *FakeStore) UpsertActivities(_ context.Context, athleteID int64, acts []trailhead.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.activities[athleteID]
	if !ok {
		m = make(map[int64]trailhead.Activity)
		s.activities[athleteID] = m
	}
	for _, a := range acts {
		m[a.ID] = a
	}
	return nil
}

// ListActivities returns stored activities, newest first.
func (s *FakeStore) ListActivities(_ context.Context, athleteID int64) ([]trailhead.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]trailhead.Activity, 0, len(s.activities[athleteID]))
	for _, a := range s.activities[athleteID] {
		out = append(out, a)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].StartDate.After(out[i].StartDate) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

// SumDistance totals stored distances in meters.
func (s *FakeStore) SumDistance(_ context.Context, athleteID int64) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, a := range s.activities[athleteID] {
		total += a.Distance
	}
	return total, nil
}

// CountActivities returns the number of stored activities.
func (s *FakeStore) CountActivities(_ context.Context, athleteID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.activities[athleteID]), nil
}

// Close is a no-op.
func (s *FakeStore) Close() error { return nil }
