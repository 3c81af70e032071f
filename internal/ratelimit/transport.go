package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrBudgetExhausted is returned when a request would exceed the local
// request budget. It surfaces before any bytes hit the wire.
var ErrBudgetExhausted = errors.New("rate budget exhausted")

// Transport is an http.RoundTripper that charges every outbound request
// against a Limiter before forwarding it.
type Transport struct {
	base    http.RoundTripper
	limiter *Limiter
}

// NewTransport wraps base with budget enforcement. A nil base uses
// http.DefaultTransport.
func NewTransport(base http.RoundTripper, limiter *Limiter) *Transport {
	return &Transport{base: base, limiter: limiter}
}

// RoundTrip consumes one request from the budget and forwards on success.
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	res := t.limiter.Allow()
	if !res.Allowed {
		return nil, fmt.Errorf("%w: retry after %.0fs", ErrBudgetExhausted, res.RetryAfterSeconds)
	}
	return t.getBase().RoundTrip(r)
}

func (t *Transport) getBase() http.RoundTripper {
	if t.base != nil {
		return t.base
	}
	return http.DefaultTransport
}
