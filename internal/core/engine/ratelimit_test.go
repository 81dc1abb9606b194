package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type virtualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newVirtualClock() *virtualClock {
	return &virtualClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *virtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *virtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *virtualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

func newTestLimiter(clock *virtualClock, n int, w time.Duration) *RateLimiter {
	limiter := NewRateLimiter(RateLimit{RequestsPerWindow: n, WindowDuration: w})
	limiter.Clock = clock.Now
	limiter.Sleep = clock.Sleep
	return limiter
}

func TestRateLimiterWindow(t *testing.T) {
	clock := newVirtualClock()
	limiter := newTestLimiter(clock, 3, time.Second)

	require.True(t, limiter.CanAdmit())

	for i := 0; i < 3; i++ {
		limiter.RecordAdmission()
	}

	clock.Advance(500 * time.Millisecond)
	require.False(t, limiter.CanAdmit())

	clock.Advance(600 * time.Millisecond)
	require.True(t, limiter.CanAdmit())
	require.Equal(t, 0, limiter.Admitted())
}

func TestRateLimiterFullAfterExactlyN(t *testing.T) {
	clock := newVirtualClock()
	limiter := newTestLimiter(clock, 2, time.Minute)

	limiter.RecordAdmission()
	require.True(t, limiter.CanAdmit())

	limiter.RecordAdmission()
	require.False(t, limiter.CanAdmit())
}

func TestRateLimiterOldestAgesOutFirst(t *testing.T) {
	clock := newVirtualClock()
	limiter := newTestLimiter(clock, 2, time.Second)

	limiter.RecordAdmission()
	clock.Advance(600 * time.Millisecond)
	limiter.RecordAdmission()
	require.False(t, limiter.CanAdmit())

	clock.Advance(500 * time.Millisecond)
	require.True(t, limiter.CanAdmit())
	require.Equal(t, 1, limiter.Admitted())
}

func TestRateLimiterWaitForSlotDelaysExtraAdmission(t *testing.T) {
	clock := newVirtualClock()
	limiter := newTestLimiter(clock, 3, time.Second)
	ctx := context.Background()

	start := clock.Now()
	var admissions []time.Time
	for i := 0; i < 4; i++ {
		require.NoError(t, limiter.WaitForSlot(ctx))
		limiter.RecordAdmission()
		admissions = append(admissions, clock.Now())
	}

	for _, at := range admissions[:3] {
		require.Equal(t, start, at)
	}
	require.GreaterOrEqual(t, admissions[3].Sub(admissions[0]), time.Second)
	require.LessOrEqual(t, admissions[3].Sub(admissions[0]), time.Second+2*DefaultSlack)
}

func TestRateLimiterWaitSleepsOncePerFailedCheck(t *testing.T) {
	clock := newVirtualClock()
	limiter := newTestLimiter(clock, 1, time.Second)

	var sleeps []time.Duration
	limiter.Sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		clock.Advance(d)
		return nil
	}

	limiter.RecordAdmission()
	clock.Advance(400 * time.Millisecond)

	require.NoError(t, limiter.WaitForSlot(context.Background()))
	require.Equal(t, []time.Duration{600*time.Millisecond + DefaultSlack}, sleeps)
}

func TestRateLimiterWaitHonorsContext(t *testing.T) {
	clock := newVirtualClock()
	limiter := newTestLimiter(clock, 1, time.Hour)
	limiter.RecordAdmission()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := limiter.WaitForSlot(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRateLimiterRealSleep(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RequestsPerWindow: 1, WindowDuration: 150 * time.Millisecond})
	limiter.Slack = 10 * time.Millisecond

	require.NoError(t, limiter.WaitForSlot(context.Background()))
	limiter.RecordAdmission()
	first := time.Now()

	require.NoError(t, limiter.WaitForSlot(context.Background()))
	limiter.RecordAdmission()

	require.GreaterOrEqual(t, time.Since(first), 150*time.Millisecond)
}

func TestRateLimiterMargin(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RequestsPerWindow: 10, WindowDuration: time.Minute})

	limiter.ApplySafetyMargin(0.9)
	limit := limiter.getLimit()
	require.Equal(t, 9, limit.RequestsPerWindow)

	limiter.ApplySafetyMargin(1.5)
	require.Equal(t, 0.9, limiter.Margin)
}

func TestRateLimiterNilIsPermissive(t *testing.T) {
	var limiter *RateLimiter
	require.True(t, limiter.CanAdmit())
	require.NoError(t, limiter.WaitForSlot(context.Background()))
	limiter.RecordAdmission()
}
