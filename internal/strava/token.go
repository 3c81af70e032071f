package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	trailhead "github.com/eugener/trailhead/internal"
)

// DefaultTokenURL is the public Strava token endpoint.
const DefaultTokenURL = "https://www.strava.com/oauth/token"

// TokenClient is the token issuer: it exchanges a refresh token for a new
// access/refresh pair against the fixed upstream token contract.
type TokenClient struct {
	clientID     string
	clientSecret string
	tokenURL     string
	http         *http.Client
}

// NewTokenClient creates a TokenClient. If tokenURL is empty, it defaults to
// the public Strava token endpoint.
func NewTokenClient(clientID, clientSecret, tokenURL string, client *http.Client) *TokenClient {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &TokenClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		http:         client,
	}
}

// refreshRequest is the fixed token-refresh request body.
type refreshRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges refreshToken for a new token triple. Every failure wraps
// trailhead.ErrReauthRequired: a non-2xx status (400 means the client
// credentials are invalid, 401 means the refresh token was revoked -- the
// distinction is informational only), or a 2xx response missing any of
// access_token, refresh_token, expires_at.
func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (*trailhead.Token, error) {
	body, err := json.Marshal(refreshRequest{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
	})
	if err != nil {
		return nil, fmt.Errorf("strava: marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("strava: create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("strava: token refresh: %w: %w", trailhead.ErrReauthRequired, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("strava: token refresh %s: %w: %w",
			classifyRefreshFailure(resp.StatusCode), trailhead.ErrReauthRequired, ParseAPIError(resp))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("strava: read token response: %w: %w", trailhead.ErrReauthRequired, err)
	}

	access := gjson.GetBytes(raw, "access_token")
	refresh := gjson.GetBytes(raw, "refresh_token")
	expires := gjson.GetBytes(raw, "expires_at")
	if !access.Exists() || !refresh.Exists() || !expires.Exists() {
		return nil, fmt.Errorf("strava: token response missing fields: %w", trailhead.ErrReauthRequired)
	}

	return &trailhead.Token{
		AccessToken:  access.String(),
		RefreshToken: refresh.String(),
		ExpiresAt:    expires.Int(),
	}, nil
}

func classifyRefreshFailure(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "(invalid credentials)"
	case http.StatusUnauthorized:
		return "(refresh token revoked)"
	default:
		return "(upstream failure)"
	}
}
