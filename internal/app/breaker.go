package app

import (
	"context"
	"fmt"

	trailhead "github.com/eugener/trailhead/internal"
	"github.com/eugener/trailhead/internal/circuitbreaker"
)

// GuardedLister wraps a Lister with a circuit breaker. An open circuit
// fails fast with an upstream error instead of spending request budget
// on an API that is already known to be down.
type GuardedLister struct {
	inner   Lister
	breaker *circuitbreaker.Breaker
}

// NewGuardedLister wraps inner with breaker.
func NewGuardedLister(inner Lister, breaker *circuitbreaker.Breaker) *GuardedLister {
	return &GuardedLister{inner: inner, breaker: breaker}
}

// ListActivities delegates to the inner Lister while the circuit allows it.
// Outcomes are recorded with classified weights, so auth failures never
// count against upstream health.
func (g *GuardedLister) ListActivities(ctx context.Context, accessToken string, page, perPage int) ([]trailhead.Activity, error) {
	if !g.breaker.Allow() {
		return nil, fmt.Errorf("upstream circuit open: %w", trailhead.ErrUpstreamUnavailable)
	}

	acts, err := g.inner.ListActivities(ctx, accessToken, page, perPage)
	if err != nil {
		g.breaker.RecordError(circuitbreaker.ClassifyError(err))
		return nil, err
	}
	g.breaker.RecordSuccess()
	return acts, nil
}
