package clients

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives a limiter deterministically: sleeps advance the clock
// instead of blocking, and each sleep is recorded.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func attach(rl *BudgetRateLimiter, c *fakeClock) {
	rl.now = c.Now
	rl.sleep = c.Sleep
	rl.dayStart = c.Now()
}

func TestWaitSpacesRequestsPerMinute(t *testing.T) {
	clock := newFakeClock()
	rl := NewBudgetRateLimiter(60, 0)
	attach(rl, clock)

	ctx := context.Background()

	require.NoError(t, rl.Wait(ctx))
	assert.Empty(t, clock.sleeps, "first request should not wait")

	// Second call 0.1s after the first must block for the remaining 0.9s.
	clock.Advance(100 * time.Millisecond)
	require.NoError(t, rl.Wait(ctx))
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 900*time.Millisecond, clock.sleeps[0])
}

func TestWaitNoSpacingWhenDisabled(t *testing.T) {
	clock := newFakeClock()
	rl := NewBudgetRateLimiter(0, 0)
	attach(rl, clock)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Wait(ctx))
	}
	assert.Empty(t, clock.sleeps)
	assert.Equal(t, int64(5), rl.Stats().Permitted)
}

func TestWaitNoSpacingAfterIntervalElapsed(t *testing.T) {
	clock := newFakeClock()
	rl := NewBudgetRateLimiter(60, 0)
	attach(rl, clock)

	ctx := context.Background()
	require.NoError(t, rl.Wait(ctx))
	clock.Advance(2 * time.Second)
	require.NoError(t, rl.Wait(ctx))
	assert.Empty(t, clock.sleeps)
}

func TestWaitBlocksUntilDailyWindowResets(t *testing.T) {
	clock := newFakeClock()
	rl := NewBudgetRateLimiter(0, 2)
	attach(rl, clock)

	ctx := context.Background()
	require.NoError(t, rl.Wait(ctx))
	require.NoError(t, rl.Wait(ctx))

	// Third request exceeds the daily budget one hour into the window and
	// must block for the remaining 23 hours.
	clock.Advance(time.Hour)
	require.NoError(t, rl.Wait(ctx))
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 23*time.Hour, clock.sleeps[0])

	stats := rl.Stats()
	assert.Equal(t, 1, stats.DailyCount, "count restarts after the window reset")
}

func TestWaitResetsDailyCountAfterWindow(t *testing.T) {
	clock := newFakeClock()
	rl := NewBudgetRateLimiter(0, 2)
	attach(rl, clock)

	ctx := context.Background()
	require.NoError(t, rl.Wait(ctx))
	require.NoError(t, rl.Wait(ctx))

	// A day later the window has lapsed on its own, so no blocking.
	clock.Advance(25 * time.Hour)
	require.NoError(t, rl.Wait(ctx))
	assert.Empty(t, clock.sleeps)
	assert.Equal(t, 1, rl.Stats().DailyCount)
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	rl := NewBudgetRateLimiter(60, 0)

	ctx := context.Background()
	require.NoError(t, rl.Wait(ctx))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := rl.Wait(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMinIntervalDerivation(t *testing.T) {
	assert.Equal(t, time.Second, NewBudgetRateLimiter(60, 0).Stats().MinInterval)
	assert.Equal(t, 500*time.Millisecond, NewBudgetRateLimiter(120, 0).Stats().MinInterval)
	assert.Equal(t, time.Duration(0), NewBudgetRateLimiter(0, 0).Stats().MinInterval)
}
