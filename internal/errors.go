package trailhead

import "errors"

// Sentinel errors for the trailhead domain.
var (
	// ErrReauthRequired means the token issuer rejected a refresh attempt
	// (or returned a malformed grant). There is no automatic recovery; the
	// athlete must re-run the authorization flow.
	ErrReauthRequired = errors.New("re-authentication required")

	// ErrUpstreamUnavailable means the activity API failed with something
	// other than an auth problem. The call is not retried.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
)
