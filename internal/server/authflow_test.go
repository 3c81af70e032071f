package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	trailhead "github.com/eugener/trailhead/internal"
	"github.com/eugener/trailhead/internal/testutil"
)

// newTokenEndpoint fakes the Strava token exchange, returning a token
// response with the athlete summary object attached.
func newTokenEndpoint(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if code := r.FormValue("code"); code != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"access_token": "new-access",
			"refresh_token": "new-refresh",
			"token_type": "Bearer",
			"expires_in": 21600,
			"athlete": {"id": 42, "username": "hiker"}
		}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAuthFlow(t *testing.T, store *testutil.FakeStore) *AuthFlow {
	t.Helper()
	tokenSrv := newTokenEndpoint(t)
	flow, err := NewAuthFlow(&oauth2.Config{
		ClientID:     "12345",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://www.strava.com/oauth/authorize",
			TokenURL: tokenSrv.URL,
		},
		RedirectURL: "http://localhost:8080/auth/strava/callback",
		Scopes:      []string{"activity:read_all"},
	}, store)
	if err != nil {
		t.Fatal(err)
	}
	return flow
}

func TestAuthFlowBegin(t *testing.T) {
	t.Parallel()
	flow := newTestAuthFlow(t, testutil.NewFakeStore())

	authURL, err := flow.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(authURL, "https://www.strava.com/oauth/authorize") {
		t.Errorf("auth URL = %q, want strava authorize prefix", authURL)
	}
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatal(err)
	}
	if u.Query().Get("state") == "" {
		t.Error("auth URL missing state")
	}
	if u.Query().Get("client_id") != "12345" {
		t.Errorf("client_id = %q, want 12345", u.Query().Get("client_id"))
	}
}

func TestAuthFlowComplete(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	flow := newTestAuthFlow(t, store)

	authURL, err := flow.Begin()
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(authURL)
	state := u.Query().Get("state")

	athleteID, err := flow.Complete(context.Background(), state, "good-code")
	if err != nil {
		t.Fatal(err)
	}
	if athleteID != 42 {
		t.Errorf("athlete ID = %d, want 42", athleteID)
	}

	cred, err := store.GetCredential(context.Background(), 42)
	if err != nil {
		t.Fatal(err)
	}
	if cred.AccessToken != "new-access" || cred.RefreshToken != "new-refresh" {
		t.Errorf("persisted tokens = %q/%q, want new-access/new-refresh",
			cred.AccessToken, cred.RefreshToken)
	}
	if cred.ExpiresAt == 0 {
		t.Error("persisted expiry is zero")
	}
}

func TestAuthFlowRejectsUnknownState(t *testing.T) {
	t.Parallel()
	flow := newTestAuthFlow(t, testutil.NewFakeStore())

	_, err := flow.Complete(context.Background(), "forged-state", "good-code")
	if !errors.Is(err, trailhead.ErrBadRequest) {
		t.Errorf("error = %v, want ErrBadRequest", err)
	}
}

func TestAuthFlowStateIsSingleUse(t *testing.T) {
	t.Parallel()
	flow := newTestAuthFlow(t, testutil.NewFakeStore())

	authURL, err := flow.Begin()
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(authURL)
	state := u.Query().Get("state")

	if _, err := flow.Complete(context.Background(), state, "good-code"); err != nil {
		t.Fatal(err)
	}
	if _, err := flow.Complete(context.Background(), state, "good-code"); !errors.Is(err, trailhead.ErrBadRequest) {
		t.Errorf("replayed state error = %v, want ErrBadRequest", err)
	}
}

func TestCallbackHandler(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	flow := newTestAuthFlow(t, store)
	h := New(Deps{
		Progress: &fakeProgress{},
		Creds:    store,
		Auth:     flow,
	})

	// Login redirects to the authorize URL.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/strava/login", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("login status = %d, want %d", rec.Code, http.StatusFound)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("redirect missing state")
	}

	// Callback exchanges the code and persists the credential.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/auth/strava/callback?state="+url.QueryEscape(state)+"&code=good-code", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("callback status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp connectedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.AthleteID != 42 || !resp.Connected {
		t.Errorf("response = %+v, want athlete 42 connected", resp)
	}
	if _, err := store.GetCredential(context.Background(), 42); err != nil {
		t.Errorf("credential not persisted: %v", err)
	}
}

func TestCallbackDenied(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	h := New(Deps{
		Progress: &fakeProgress{},
		Creds:    store,
		Auth:     newTestAuthFlow(t, store),
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/auth/strava/callback?error=access_denied", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
