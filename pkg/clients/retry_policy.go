package clients

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy wraps a single operation with bounded exponential backoff.
// RetryCount is the number of retries after the first attempt, so an
// operation runs at most RetryCount+1 times. The delay before retry i
// (1-indexed) is InitialDelay * Multiplier^(i-1), capped at MaxDelay.
type RetryPolicy struct {
	RetryCount      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64

	// Overridable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy creates a retry policy with exponential backoff and no
// jitter, so delays are deterministic.
func NewRetryPolicy(retryCount int, initialDelay time.Duration) *RetryPolicy {
	return &RetryPolicy{
		RetryCount:   retryCount,
		InitialDelay: initialDelay,
		MaxDelay:     5 * time.Minute,
		Multiplier:   2.0,
		sleep:        sleepContext,
	}
}

// Execute runs fn under the policy. On failure it sleeps and retries until
// the attempts are exhausted, then returns the last error unwrapped so the
// caller sees the original failure.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	return rp.ExecuteWithCondition(ctx, fn, func(error) bool { return true })
}

// ExecuteWithCondition runs fn under the policy, retrying only while
// shouldRetry approves the error.
func (rp *RetryPolicy) ExecuteWithCondition(ctx context.Context, fn func() error, shouldRetry func(error) bool) error {
	attempts := rp.RetryCount + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == attempts || !shouldRetry(err) {
			break
		}

		delay := rp.calculateDelay(attempt)
		if err := rp.wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}

	return lastErr
}

// wait sleeps for delay or until the context is cancelled.
func (rp *RetryPolicy) wait(ctx context.Context, delay time.Duration) error {
	sleep := rp.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return sleep(ctx, delay)
}

// calculateDelay computes the backoff before the retry following failed
// attempt number attempt (1-indexed).
func (rp *RetryPolicy) calculateDelay(attempt int) time.Duration {
	delay := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt-1))

	if rp.MaxDelay > 0 && delay > float64(rp.MaxDelay) {
		delay = float64(rp.MaxDelay)
	}

	if rp.RandomizeFactor > 0 {
		delta := delay * rp.RandomizeFactor
		delay = delay - delta + rand.Float64()*2*delta
	}

	return time.Duration(delay)
}

// GetDelay returns the delay that would precede the retry after failed
// attempt number attempt (1-indexed). Exposed for tests and previews.
func (rp *RetryPolicy) GetDelay(attempt int) time.Duration {
	return rp.calculateDelay(attempt)
}

// Clone copies the policy.
func (rp *RetryPolicy) Clone() *RetryPolicy {
	clone := *rp
	return &clone
}

// NoRetryPolicy returns a policy that runs the operation exactly once.
func NoRetryPolicy() *RetryPolicy {
	return &RetryPolicy{sleep: sleepContext}
}
