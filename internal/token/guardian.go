// Package token guards access-token freshness for upstream API calls.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	trailhead "github.com/eugener/trailhead/internal"
)

// RefreshWindow is how long before expiry a token is refreshed proactively.
// Refresh is decided on this window alone, never on whether the token has
// technically expired already.
const RefreshWindow = time.Hour

// Issuer exchanges a refresh token for a new access/refresh pair.
type Issuer interface {
	Refresh(ctx context.Context, refreshToken string) (*trailhead.Token, error)
}

// CredentialWriter persists a refreshed token triple, keyed by athlete.
type CredentialWriter interface {
	UpdateTokens(ctx context.Context, athleteID int64, tok *trailhead.Token) error
}

// Guardian guarantees the caller holds an access token valid for immediate
// use, refreshing and persisting when the held token is inside the refresh
// window. It never retries a failed refresh; a refresh failure means the
// athlete has to re-authorize.
type Guardian struct {
	issuer Issuer
	now    func() time.Time
}

// NewGuardian creates a Guardian backed by the given issuer.
func NewGuardian(issuer Issuer) *Guardian {
	return &Guardian{issuer: issuer, now: time.Now}
}

// ShouldRefresh reports whether a token expiring at expiresAt (epoch seconds)
// is due for a proactive refresh.
func (g *Guardian) ShouldRefresh(expiresAt int64) bool {
	return time.Duration(expiresAt-g.now().Unix())*time.Second <= RefreshWindow
}

// IsExpired reports whether the token is already past its expiry. Diagnostic
// only; the refresh decision always uses the wider ShouldRefresh window.
func (g *Guardian) IsExpired(expiresAt int64) bool {
	return g.now().Unix() >= expiresAt
}

// EnsureValid returns an access token usable right now. When the held token
// is not due for refresh it is returned as-is, with no issuer call and no
// store write. Otherwise the refresh token is exchanged once; on success the
// new triple is written back through store. A write-back failure is logged
// and swallowed -- the fresh access token is still returned, and the next
// call simply refreshes again since the store kept the old expiry. On a
// successful refresh cred is updated in place so the caller can retry with
// the new pair.
//
// A refresh failure returns an error satisfying
// errors.Is(err, trailhead.ErrReauthRequired).
func (g *Guardian) EnsureValid(ctx context.Context, cred *trailhead.Credential, store CredentialWriter) (string, error) {
	if !g.ShouldRefresh(cred.ExpiresAt) {
		return cred.AccessToken, nil
	}
	return g.refresh(ctx, cred, store)
}

// ForceRefresh exchanges the refresh token unconditionally. Callers use it
// after a 401 from the resource API, which signals the access token is bad
// regardless of what the stored expiry claims (clock skew, out-of-band
// revocation). Exactly one forced refresh-and-retry cycle per resource call.
func (g *Guardian) ForceRefresh(ctx context.Context, cred *trailhead.Credential, store CredentialWriter) (string, error) {
	return g.refresh(ctx, cred, store)
}

func (g *Guardian) refresh(ctx context.Context, cred *trailhead.Credential, store CredentialWriter) (string, error) {
	tok, err := g.issuer.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		if errors.Is(err, trailhead.ErrReauthRequired) {
			return "", fmt.Errorf("refresh athlete %d: %w", cred.AthleteID, err)
		}
		return "", fmt.Errorf("refresh athlete %d: %w: %w", cred.AthleteID, trailhead.ErrReauthRequired, err)
	}

	if err := store.UpdateTokens(ctx, cred.AthleteID, tok); err != nil {
		// Non-fatal: an in-flight request should not fail because the
		// write-back lagged.
		slog.LogAttrs(ctx, slog.LevelWarn, "credential write-back failed",
			slog.Int64("athlete_id", cred.AthleteID),
			slog.String("error", err.Error()),
		)
	}

	cred.AccessToken = tok.AccessToken
	cred.RefreshToken = tok.RefreshToken
	cred.ExpiresAt = tok.ExpiresAt
	return tok.AccessToken, nil
}
