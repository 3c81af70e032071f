package testutil

import (
	"context"
	"sync"

	trailhead "github.com/eugener/trailhead/internal"
)

// FakeIssuer is a configurable token.Issuer for testing.
type FakeIssuer struct {
	mu    sync.Mutex
	calls int

	Token *trailhead.Token
	Err   error
}

// Refresh returns the configured token or error and counts the call.
func (f *FakeIssuer) Refresh(context.Context, string) (*trailhead.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Token, nil
}

// Calls returns how many refreshes were attempted.
func (f *FakeIssuer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeLister is a scripted app.Lister: each page request pops the next
// response for that page number. Pages past the script are empty.
type FakeLister struct {
	mu    sync.Mutex
	calls int

	// Pages holds the scripted responses, indexed by page-1.
	Pages [][]trailhead.Activity
	// Reject401 makes the lister return ErrUnauthorized for the given
	// access tokens.
	Reject401 map[string]bool
	// Err fails every call when set.
	Err error
}

// ListActivities serves the scripted page for the presented token.
func (f *FakeLister) ListActivities(_ context.Context, accessToken string, page, _ int) ([]trailhead.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Reject401[accessToken] {
		return nil, trailhead.ErrUnauthorized
	}
	if page-1 < len(f.Pages) {
		return f.Pages[page-1], nil
	}
	return nil, nil
}

// Calls returns how many page requests were made, including retries.
func (f *FakeLister) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
