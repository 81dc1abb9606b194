package engine

import (
	"context"
	"math"
	"sync"
	"time"
)

// DefaultSlack is added to every computed wait to absorb clock and scheduler jitter.
const DefaultSlack = 100 * time.Millisecond

// RateLimit represents a rate limit window.
type RateLimit struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// DefaultLimit matches the pace the Wayback Machine tolerates from anonymous clients.
var DefaultLimit = RateLimit{RequestsPerWindow: 15, WindowDuration: time.Minute}

// RateLimiter admits at most RequestsPerWindow calls within any rolling
// WindowDuration. Admissions are recorded explicitly by the caller so a
// caller that gives up after waiting does not consume a slot.
type RateLimiter struct {
	Limit RateLimit
	Slack time.Duration
	Clock func() time.Time
	// Sleep suspends for d or until ctx is done. Tests replace it to drive a virtual clock.
	Sleep  func(ctx context.Context, d time.Duration) error
	Margin float64

	mu     sync.Mutex
	window []time.Time
}

// NewRateLimiter returns a limiter for the given window.
func NewRateLimiter(limit RateLimit) *RateLimiter {
	return &RateLimiter{Limit: limit, Slack: DefaultSlack}
}

// CanAdmit purges admissions older than the window and reports whether another fits.
func (r *RateLimiter) CanAdmit() bool {
	if r == nil {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.purge(r.now())
	return len(r.window) < r.getLimit().RequestsPerWindow
}

// WaitForSlot blocks until CanAdmit would succeed. Each failed check is
// followed by exactly one sleep until the oldest admission leaves the window,
// plus Slack. There is no upper bound on the wait beyond ctx.
func (r *RateLimiter) WaitForSlot(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		if r.CanAdmit() {
			return nil
		}

		wait := r.untilOldestExpires()
		if wait < 0 {
			wait = 0
		}
		if err := r.sleep(ctx, wait+r.slack()); err != nil {
			return err
		}
	}
}

// RecordAdmission appends the current time to the window.
func (r *RateLimiter) RecordAdmission() {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.window = append(r.window, r.now())
}

// Admitted returns the number of admissions currently inside the window.
func (r *RateLimiter) Admitted() int {
	if r == nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.purge(r.now())
	return len(r.window)
}

// ApplySafetyMargin adjusts the effective request limit by a ratio (0-1].
func (r *RateLimiter) ApplySafetyMargin(margin float64) {
	if r == nil {
		return
	}
	if margin <= 0 || margin > 1 {
		return
	}
	r.Margin = margin
}

func (r *RateLimiter) untilOldestExpires() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.window) == 0 {
		return 0
	}
	return r.window[0].Add(r.getLimit().WindowDuration).Sub(r.now())
}

// purge drops admissions older than now-W. The caller holds mu.
func (r *RateLimiter) purge(now time.Time) {
	cutoff := now.Add(-r.getLimit().WindowDuration)

	keep := 0
	for keep < len(r.window) && r.window[keep].Before(cutoff) {
		keep++
	}
	if keep > 0 {
		r.window = append(r.window[:0], r.window[keep:]...)
	}
}

func (r *RateLimiter) getLimit() RateLimit {
	limit := r.Limit
	if limit.RequestsPerWindow <= 0 || limit.WindowDuration <= 0 {
		limit = DefaultLimit
	}
	return r.applyMargin(limit)
}

func (r *RateLimiter) slack() time.Duration {
	if r.Slack <= 0 {
		return DefaultSlack
	}
	return r.Slack
}

func (r *RateLimiter) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

func (r *RateLimiter) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *RateLimiter) applyMargin(limit RateLimit) RateLimit {
	if r.Margin <= 0 || r.Margin > 1 {
		return limit
	}
	adjusted := int(math.Floor(float64(limit.RequestsPerWindow) * r.Margin))
	if adjusted < 1 {
		adjusted = 1
	}
	limit.RequestsPerWindow = adjusted
	return limit
}
