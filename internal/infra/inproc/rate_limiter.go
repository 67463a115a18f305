package inproc

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterSweepEvery = time.Minute

type limiterEntry struct {
	lim    *rate.Limiter
	window time.Duration
	last   time.Time
}

// RateLimiter keeps one token bucket per key. The bucket refills limit
// tokens per window and allows bursts of limit. Buckets idle for a full
// window are back at capacity and get dropped on the next sweep.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{limiters: map[string]*limiterEntry{}, now: time.Now}
}

func (r *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) >= limiterSweepEvery {
		r.sweep(now)
	}
	e, ok := r.limiters[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit), window: window}
		r.limiters[key] = e
	}
	e.last = now
	return e.lim.AllowN(now, 1), nil
}

// sweep must be called with mu held.
func (r *RateLimiter) sweep(now time.Time) {
	for k, e := range r.limiters {
		if now.Sub(e.last) >= e.window {
			delete(r.limiters, k)
		}
	}
	r.lastSweep = now
}
