package clients

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingSleep(sleeps *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
}

func TestExecuteAttemptCountOnPersistentFailure(t *testing.T) {
	var sleeps []time.Duration
	rp := NewRetryPolicy(3, 10*time.Millisecond)
	rp.sleep = recordingSleep(&sleeps)

	boom := errors.New("boom")
	attempts := 0
	err := rp.Execute(context.Background(), func() error {
		attempts++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 4, attempts, "retry count 3 means 4 total attempts")
	assert.Len(t, sleeps, 3)
}

func TestExecuteExponentialDelays(t *testing.T) {
	var sleeps []time.Duration
	rp := NewRetryPolicy(3, 100*time.Millisecond)
	rp.sleep = recordingSleep(&sleeps)

	_ = rp.Execute(context.Background(), func() error { return errors.New("nope") })

	require.Len(t, sleeps, 3)
	assert.Equal(t, 100*time.Millisecond, sleeps[0])
	assert.Equal(t, 200*time.Millisecond, sleeps[1])
	assert.Equal(t, 400*time.Millisecond, sleeps[2])
}

func TestExecuteSucceedsOnSecondAttempt(t *testing.T) {
	var sleeps []time.Duration
	rp := NewRetryPolicy(3, 10*time.Millisecond)
	rp.sleep = recordingSleep(&sleeps)

	attempts := 0
	err := rp.Execute(context.Background(), func() error {
		attempts++
		if attempts == 1 {
			return errors.New("too many requests")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Len(t, sleeps, 1)
}

func TestExecuteNoRetryOnImmediateSuccess(t *testing.T) {
	rp := NewRetryPolicy(5, time.Second)
	attempts := 0
	require.NoError(t, rp.Execute(context.Background(), func() error {
		attempts++
		return nil
	}))
	assert.Equal(t, 1, attempts)
}

func TestExecuteWithConditionStopsOnFatalError(t *testing.T) {
	rp := NewRetryPolicy(5, time.Millisecond)
	fatal := errors.New("bad credentials")

	attempts := 0
	err := rp.ExecuteWithCondition(context.Background(),
		func() error {
			attempts++
			return fatal
		},
		func(err error) bool { return !errors.Is(err, fatal) })

	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, attempts)
}

func TestExecuteContextCancelledDuringBackoff(t *testing.T) {
	rp := NewRetryPolicy(3, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rp.Execute(ctx, func() error { return errors.New("transient") })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetDelay(t *testing.T) {
	rp := NewRetryPolicy(5, time.Second)

	assert.Equal(t, time.Second, rp.GetDelay(1))
	assert.Equal(t, 2*time.Second, rp.GetDelay(2))
	assert.Equal(t, 4*time.Second, rp.GetDelay(3))
	assert.Equal(t, 8*time.Second, rp.GetDelay(4))
}

func TestGetDelayCappedAtMax(t *testing.T) {
	rp := NewRetryPolicy(10, time.Second)
	rp.MaxDelay = 5 * time.Second

	assert.Equal(t, 4*time.Second, rp.GetDelay(3))
	assert.Equal(t, 5*time.Second, rp.GetDelay(4))
	assert.Equal(t, 5*time.Second, rp.GetDelay(10))
}

func TestNoRetryPolicy(t *testing.T) {
	rp := NoRetryPolicy()
	attempts := 0
	err := rp.Execute(context.Background(), func() error {
		attempts++
		return errors.New("once")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
