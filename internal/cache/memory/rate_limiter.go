package memory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// waitPollInterval bounds how long Wait sleeps between attempts.
const waitPollInterval = 50 * time.Millisecond

// RateLimiter implements domain.RateLimiter with a sliding window of
// request times per key. Limits only hold within this process.
type RateLimiter struct {
	now func() time.Time

	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{now: time.Now, windows: make(map[string][]time.Time)}
}

// Allow reports whether one more request for key fits in limit requests
// per window, and counts it when it does.
func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := rl.now()
	cutoff := now.Add(-window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	hits := rl.windows[key]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]
	if len(hits) >= limit {
		rl.windows[key] = hits
		return false, nil
	}
	rl.windows[key] = append(hits, now)
	return true, nil
}

// Wait blocks until Allow admits a request for key or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, key string, limit int, window time.Duration) error {
	poll := window / time.Duration(max(limit, 1))
	if poll <= 0 || poll > waitPollInterval {
		poll = waitPollInterval
	}
	for {
		allowed, _ := rl.Allow(ctx, key, limit, window)
		if allowed {
			return nil
		}
		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("memory: rate limit wait %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}
