// Package ratelimit paces outbound Strava API calls with lazy-refill token
// buckets. Strava enforces a rolling 15-minute budget and a daily budget per
// application; exceeding either earns a 429 and a cooldown, so it is cheaper
// to stop locally before the wire.
package ratelimit

import (
	"sync"
	"time"
)

// Budget holds the request budgets for the upstream application.
// A value of 0 means unlimited.
type Budget struct {
	Window int64 // requests per 15-minute window
	Daily  int64 // requests per day
}

// DefaultBudget matches the entry-level Strava application limits.
func DefaultBudget() Budget {
	return Budget{Window: 100, Daily: 1000}
}

// Result is the outcome of a budget check.
type Result struct {
	Allowed           bool
	Limit             int64
	Remaining         int64
	RetryAfterSeconds float64
}

// bucket is a token bucket with lazy refill (no background goroutine).
type bucket struct {
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastFill time.Time
}

func newBucket(limit int64, window time.Duration, now time.Time) *bucket {
	return &bucket{
		tokens:   float64(limit),
		max:      float64(limit),
		rate:     float64(limit) / window.Seconds(),
		lastFill: now,
	}
}

// refill adds tokens based on elapsed time since last refill.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.max, b.tokens+elapsed*b.rate)
	b.lastFill = now
}

// tryConsume attempts to consume one token. Returns remaining and whether allowed.
func (b *bucket) tryConsume(now time.Time) (remaining int64, allowed bool) {
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return int64(b.tokens), true
	}
	return 0, false
}

// retryAfter returns seconds until one token is available.
func (b *bucket) retryAfter() float64 {
	if b.tokens >= 1 {
		return 0
	}
	return (1 - b.tokens) / b.rate
}

// Limiter holds dual window + daily buckets for the upstream application.
type Limiter struct {
	mu     sync.Mutex
	window *bucket // nil if window budget unlimited
	daily  *bucket // nil if daily budget unlimited
	budget Budget
	now    func() time.Time
}

// NewLimiter creates a Limiter with the given budget.
func NewLimiter(budget Budget) *Limiter {
	return newLimiter(budget, time.Now)
}

func newLimiter(budget Budget, now func() time.Time) *Limiter {
	l := &Limiter{budget: budget, now: now}
	if budget.Window > 0 {
		l.window = newBucket(budget.Window, 15*time.Minute, now())
	}
	if budget.Daily > 0 {
		l.daily = newBucket(budget.Daily, 24*time.Hour, now())
	}
	return l
}

// Allow consumes one request from both budgets. When either budget is
// exhausted the request is denied and nothing is consumed from the other,
// so a denied call never burns daily budget.
func (l *Limiter) Allow() Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()

	if l.window != nil {
		l.window.refill(now)
		if l.window.tokens < 1 {
			return Result{
				Limit:             l.budget.Window,
				RetryAfterSeconds: l.window.retryAfter(),
			}
		}
	}
	if l.daily != nil {
		l.daily.refill(now)
		if l.daily.tokens < 1 {
			return Result{
				Limit:             l.budget.Daily,
				RetryAfterSeconds: l.daily.retryAfter(),
			}
		}
	}

	res := Result{Allowed: true}
	if l.window != nil {
		res.Remaining, _ = l.window.tryConsume(now)
		res.Limit = l.budget.Window
	}
	if l.daily != nil {
		remaining, _ := l.daily.tryConsume(now)
		if l.window == nil {
			res.Remaining = remaining
			res.Limit = l.budget.Daily
		}
	}
	return res
}

// Remaining returns the current window budget without consuming.
func (l *Limiter) Remaining() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.window == nil {
		return -1
	}
	l.window.refill(l.now())
	return int64(l.window.tokens)
}
