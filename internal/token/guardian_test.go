package token

import (
	"context"
	"errors"
	"testing"
	"time"

	trailhead "github.com/eugener/trailhead/internal"
)

type fakeIssuer struct {
	calls int
	tok   *trailhead.Token
	err   error
}

func (f *fakeIssuer) Refresh(_ context.Context, _ string) (*trailhead.Token, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tok, nil
}

type fakeWriter struct {
	calls int
	id    int64
	tok   *trailhead.Token
	err   error
}

func (f *fakeWriter) UpdateTokens(_ context.Context, athleteID int64, tok *trailhead.Token) error {
	f.calls++
	f.id = athleteID
	f.tok = tok
	return f.err
}

func testGuardian(issuer Issuer, now time.Time) *Guardian {
	g := NewGuardian(issuer)
	g.now = func() time.Time { return now }
	return g
}

func TestGuardian_ShouldRefresh(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	g := testGuardian(nil, now)

	tests := []struct {
		name      string
		expiresAt int64
		want      bool
	}{
		{"well in the future", now.Unix() + 7200, false},
		{"just outside window", now.Unix() + 3601, false},
		{"exactly on window edge", now.Unix() + 3600, true},
		{"inside window", now.Unix() + 600, true},
		{"already expired", now.Unix() - 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.ShouldRefresh(tt.expiresAt); got != tt.want {
				t.Errorf("ShouldRefresh(%d) = %v, want %v", tt.expiresAt, got, tt.want)
			}
		})
	}
}

func TestGuardian_IsExpired(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	g := testGuardian(nil, now)

	// A token inside the refresh window is due for refresh yet not expired;
	// the two checks are independent.
	expiresAt := now.Unix() + 600
	if g.IsExpired(expiresAt) {
		t.Error("token 10m from expiry should not be expired")
	}
	if !g.ShouldRefresh(expiresAt) {
		t.Error("token 10m from expiry should be due for refresh")
	}

	if !g.IsExpired(now.Unix()) {
		t.Error("token expiring exactly now should be expired")
	}
	if !g.IsExpired(now.Unix() - 1) {
		t.Error("past expiry should be expired")
	}
}

func TestGuardian_EnsureValid_NotDue(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	issuer := &fakeIssuer{}
	writer := &fakeWriter{}
	g := testGuardian(issuer, now)

	cred := &trailhead.Credential{
		AthleteID:   42,
		AccessToken: "held-token",
		ExpiresAt:   now.Unix() + 7200,
	}

	got, err := g.EnsureValid(context.Background(), cred, writer)
	if err != nil {
		t.Fatal(err)
	}
	if got != "held-token" {
		t.Errorf("token = %q, want held token unchanged", got)
	}
	if issuer.calls != 0 {
		t.Errorf("issuer calls = %d, want 0", issuer.calls)
	}
	if writer.calls != 0 {
		t.Errorf("store writes = %d, want 0", writer.calls)
	}
}

func TestGuardian_EnsureValid_RefreshAndPersist(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	fresh := &trailhead.Token{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		ExpiresAt:    now.Unix() + 21600,
	}
	issuer := &fakeIssuer{tok: fresh}
	writer := &fakeWriter{}
	g := testGuardian(issuer, now)

	cred := &trailhead.Credential{
		AthleteID:    42,
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    now.Unix() - 10, // already expired
	}

	got, err := g.EnsureValid(context.Background(), cred, writer)
	if err != nil {
		t.Fatal(err)
	}
	if got != "new-access" {
		t.Errorf("token = %q, want issuer's new token", got)
	}
	if issuer.calls != 1 {
		t.Errorf("issuer calls = %d, want 1", issuer.calls)
	}
	if writer.calls != 1 {
		t.Errorf("store writes = %d, want 1", writer.calls)
	}
	if writer.id != 42 {
		t.Errorf("persisted athlete = %d, want 42", writer.id)
	}
	if writer.tok != fresh {
		t.Error("persisted triple should be the issuer's new triple")
	}
	if cred.RefreshToken != "new-refresh" || cred.ExpiresAt != fresh.ExpiresAt {
		t.Error("credential should be updated in place")
	}
}

func TestGuardian_EnsureValid_PersistFailureNonFatal(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	issuer := &fakeIssuer{tok: &trailhead.Token{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		ExpiresAt:    now.Unix() + 21600,
	}}
	writer := &fakeWriter{err: errors.New("disk full")}
	g := testGuardian(issuer, now)

	cred := &trailhead.Credential{AthleteID: 7, AccessToken: "old", ExpiresAt: now.Unix() + 60}

	got, err := g.EnsureValid(context.Background(), cred, writer)
	if err != nil {
		t.Fatalf("persist failure must not fail the refresh: %v", err)
	}
	if got != "new-access" {
		t.Errorf("token = %q, want issuer's new token despite write failure", got)
	}
	if writer.calls != 1 {
		t.Errorf("store writes = %d, want 1", writer.calls)
	}
}

func TestGuardian_EnsureValid_IssuerFailure(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	issuer := &fakeIssuer{err: errors.New("boom")}
	writer := &fakeWriter{}
	g := testGuardian(issuer, now)

	cred := &trailhead.Credential{AthleteID: 7, ExpiresAt: now.Unix() - 10}

	_, err := g.EnsureValid(context.Background(), cred, writer)
	if !errors.Is(err, trailhead.ErrReauthRequired) {
		t.Errorf("error = %v, want ErrReauthRequired", err)
	}
	if issuer.calls != 1 {
		t.Errorf("issuer calls = %d, want exactly 1 (no internal retry)", issuer.calls)
	}
	if writer.calls != 0 {
		t.Errorf("store writes = %d, want 0 on issuer failure", writer.calls)
	}
}

func TestGuardian_ForceRefresh_BypassesWindow(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	issuer := &fakeIssuer{tok: &trailhead.Token{
		AccessToken:  "forced",
		RefreshToken: "r2",
		ExpiresAt:    now.Unix() + 21600,
	}}
	writer := &fakeWriter{}
	g := testGuardian(issuer, now)

	// Token looks healthy, but the resource API said 401.
	cred := &trailhead.Credential{AthleteID: 7, AccessToken: "revoked", ExpiresAt: now.Unix() + 7200}

	got, err := g.ForceRefresh(context.Background(), cred, writer)
	if err != nil {
		t.Fatal(err)
	}
	if got != "forced" {
		t.Errorf("token = %q, want forced refresh result", got)
	}
	if issuer.calls != 1 {
		t.Errorf("issuer calls = %d, want 1", issuer.calls)
	}
}
