// Package strava implements the upstream API client for activity listing and
// token exchange.
package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	trailhead "github.com/eugener/trailhead/internal"
)

const defaultBaseURL = "https://www.strava.com/api/v3"

// Client calls the Strava resource API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client. If baseURL is empty, it defaults to the public
// Strava v3 API. The provided http.Client's timeout behavior is inherited
// as-is; no extra deadline is layered on top.
func New(baseURL string, client *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
	}
}

// ListActivities fetches one page of the athlete's activities. An empty
// slice signals the end of pagination.
//
// A 401 returns an error satisfying errors.Is(err, trailhead.ErrUnauthorized):
// the access token is no longer valid even if it was not yet due for refresh
// (clock skew or out-of-band revocation), and the caller should force one
// refresh on this signal alone. Any other non-2xx wraps
// trailhead.ErrUpstreamUnavailable.
func (c *Client) ListActivities(ctx context.Context, accessToken string, page, perPage int) ([]trailhead.Activity, error) {
	u := c.baseURL + "/athlete/activities?page=" + strconv.Itoa(page) +
		"&per_page=" + strconv.Itoa(perPage)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("strava: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("strava: list activities: %w: %w", trailhead.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("strava: list activities page %d: %w", page, trailhead.ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("strava: %w: %w", trailhead.ErrUpstreamUnavailable, ParseAPIError(resp))
	}

	var out []trailhead.Activity
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("strava: decode activities page %d: %w", page, err)
	}
	return out, nil
}
