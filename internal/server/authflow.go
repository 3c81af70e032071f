package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/maypok86/otter/v2"
	"golang.org/x/oauth2"

	trailhead "github.com/eugener/trailhead/internal"
	"github.com/eugener/trailhead/internal/storage"
)

const (
	// stateTTL bounds how long a login attempt may sit between redirect
	// and callback before the state token is rejected.
	stateTTL    = 10 * time.Minute
	stateMaxLen = 1000
)

// AuthFlow implements the browser OAuth flow against Strava. One-time state
// tokens live in an otter cache so abandoned logins expire on their own.
type AuthFlow struct {
	oauth  *oauth2.Config
	creds  storage.CredentialStore
	states *otter.Cache[string, time.Time]
}

// NewAuthFlow wires the OAuth client config and the credential store.
func NewAuthFlow(oauth *oauth2.Config, creds storage.CredentialStore) (*AuthFlow, error) {
	states, err := otter.New[string, time.Time](&otter.Options[string, time.Time]{
		MaximumSize:      stateMaxLen,
		ExpiryCalculator: otter.ExpiryWriting[string, time.Time](stateTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create state cache: %w", err)
	}
	return &AuthFlow{oauth: oauth, creds: creds, states: states}, nil
}

// Begin mints a one-time state token and returns the authorize URL.
func (a *AuthFlow) Begin() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(buf)
	a.states.Set(state, time.Now())
	return a.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// Complete validates the state, exchanges the code, and persists the
// resulting credential. Returns the connected athlete ID.
func (a *AuthFlow) Complete(ctx context.Context, state, code string) (int64, error) {
	if _, ok := a.states.GetIfPresent(state); !ok {
		return 0, fmt.Errorf("unknown or expired state: %w", trailhead.ErrBadRequest)
	}
	a.states.Invalidate(state)

	tok, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("code exchange: %w: %v", trailhead.ErrUpstreamUnavailable, err)
	}

	athleteID, err := athleteIDFromToken(tok)
	if err != nil {
		return 0, err
	}

	cred := &trailhead.Credential{
		AthleteID:    athleteID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry.Unix(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := a.creds.UpsertCredential(ctx, cred); err != nil {
		return 0, fmt.Errorf("persist credential: %w", err)
	}
	return athleteID, nil
}

// athleteIDFromToken pulls the athlete ID out of the token response.
// Strava returns an "athlete" summary object alongside the token fields.
func athleteIDFromToken(tok *oauth2.Token) (int64, error) {
	athlete, ok := tok.Extra("athlete").(map[string]any)
	if !ok {
		return 0, fmt.Errorf("token response missing athlete: %w", trailhead.ErrUpstreamUnavailable)
	}
	id, ok := athlete["id"].(float64)
	if !ok || id <= 0 {
		return 0, fmt.Errorf("token response missing athlete id: %w", trailhead.ErrUpstreamUnavailable)
	}
	return int64(id), nil
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	url, err := s.deps.Auth.Begin()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errMsg := q.Get("error"); errMsg != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("authorization denied: "+errMsg))
		return
	}
	state, code := q.Get("state"), q.Get("code")
	if state == "" || code == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("missing state or code"))
		return
	}

	athleteID, err := s.deps.Auth.Complete(r.Context(), state, code)
	if err != nil {
		writeError(w, err)
		return
	}
	slog.LogAttrs(r.Context(), slog.LevelInfo, "athlete connected",
		slog.Int64("athlete_id", athleteID),
	)
	writeJSON(w, http.StatusOK, connectedResponse{
		AthleteID: athleteID,
		Connected: true,
	})
}

type connectedResponse struct {
	AthleteID int64 `json:"athlete_id"`
	Connected bool  `json:"connected"`
}
