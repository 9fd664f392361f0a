// Package clients provides the transport-side building blocks for networked
// extraction: a budgeted rate limiter, a retry policy, an HTTP client wrapper,
// and an OAuth2 token helper.
package clients

import (
	"context"
	"sync"
	"time"
)

const dailyWindow = 24 * time.Hour

// BudgetRateLimiter enforces per-minute and per-day request budgets for one
// extraction source. Wait blocks the caller until the next request is
// permitted: first the daily window is checked (blocking until the window
// resets when the day's budget is spent), then consecutive requests are
// spaced at least minInterval apart. State belongs to a single extractor;
// the mutex only guards against accidental sharing.
type BudgetRateLimiter struct {
	requestsPerMinute int
	requestsPerDay    int
	minInterval       time.Duration

	lastRequest time.Time
	dailyCount  int
	dayStart    time.Time

	permitted     int64
	totalWaitTime time.Duration

	mu sync.Mutex

	// Overridable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// BudgetStats is a snapshot of a limiter's configuration and usage.
type BudgetStats struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	RequestsPerDay    int           `json:"requests_per_day"`
	MinInterval       time.Duration `json:"min_interval"`
	DailyCount        int           `json:"daily_count"`
	Permitted         int64         `json:"permitted"`
	TotalWaitTime     time.Duration `json:"total_wait_time"`
}

// NewBudgetRateLimiter creates a limiter with the given budgets. A zero or
// negative budget disables that check: rpm <= 0 means no spacing between
// requests, rpd <= 0 means no daily cap.
func NewBudgetRateLimiter(requestsPerMinute, requestsPerDay int) *BudgetRateLimiter {
	rl := &BudgetRateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerDay:    requestsPerDay,
		now:               time.Now,
		sleep:             sleepContext,
	}
	if requestsPerMinute > 0 {
		rl.minInterval = time.Minute / time.Duration(requestsPerMinute)
	}
	rl.dayStart = rl.now()
	return rl
}

// Wait blocks until the next request is permitted, then records it. The
// context aborts any in-progress sleep.
func (rl *BudgetRateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.requestsPerDay > 0 {
		if rl.now().Sub(rl.dayStart) > dailyWindow {
			rl.dailyCount = 0
			rl.dayStart = rl.now()
		}

		if rl.dailyCount >= rl.requestsPerDay {
			waitFor := dailyWindow - rl.now().Sub(rl.dayStart)
			if waitFor > 0 {
				if err := rl.block(ctx, waitFor); err != nil {
					return err
				}
			}
			rl.dailyCount = 0
			rl.dayStart = rl.now()
		}
	}

	if rl.minInterval > 0 {
		elapsed := rl.now().Sub(rl.lastRequest)
		if elapsed < rl.minInterval {
			if err := rl.block(ctx, rl.minInterval-elapsed); err != nil {
				return err
			}
		}
	}

	rl.lastRequest = rl.now()
	rl.dailyCount++
	rl.permitted++
	return nil
}

// block sleeps for d, accumulating wait-time stats.
func (rl *BudgetRateLimiter) block(ctx context.Context, d time.Duration) error {
	rl.totalWaitTime += d
	return rl.sleep(ctx, d)
}

// Stats returns a snapshot of the limiter state.
func (rl *BudgetRateLimiter) Stats() BudgetStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return BudgetStats{
		RequestsPerMinute: rl.requestsPerMinute,
		RequestsPerDay:    rl.requestsPerDay,
		MinInterval:       rl.minInterval,
		DailyCount:        rl.dailyCount,
		Permitted:         rl.permitted,
		TotalWaitTime:     rl.totalWaitTime,
	}
}

// sleepContext waits for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
