package circuitbreaker

import (
	"context"
	"errors"
	"net"
	"os"

	trailhead "github.com/eugener/trailhead/internal"
)

// httpStatusError is an interface for errors carrying an HTTP status code.
// strava.APIError implements it.
type httpStatusError interface {
	HTTPStatus() int
}

// ClassifyError returns the error weight for circuit breaker tracking.
//
// Weights:
//   - timeout (deadline exceeded) -> 1.5
//   - 500-504 -> 1.0
//   - 429 (rate limited) -> 0.5
//   - 401 -> 0.0 (token problem, the upstream itself is healthy)
//   - other 4xx -> 0.0
//   - network errors (non-timeout) -> 1.0
//   - nil -> 0.0
func ClassifyError(err error) float64 {
	if err == nil {
		return 0
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return 1.5
	}

	// A rejected access token is the guardian's problem, not availability.
	if errors.Is(err, trailhead.ErrUnauthorized) || errors.Is(err, trailhead.ErrReauthRequired) {
		return 0
	}

	var he httpStatusError
	if errors.As(err, &he) {
		return classifyStatus(he.HTTPStatus())
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return 1.0
	}

	// Generic errors (e.g. connection refused) -> treat as upstream fault.
	return 1.0
}

// classifyStatus returns the error weight for an HTTP status code.
func classifyStatus(code int) float64 {
	switch {
	case code == 429:
		return 0.5
	case code >= 500 && code <= 504:
		return 1.0
	default:
		return 0.0
	}
}
