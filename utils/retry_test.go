package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amazon-scraper/logger"
)

func testRetry(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		Logger:      logger.NewNop(),
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := testRetry(3).Do(context.Background(), "flaky-op", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("persistent")
	calls := 0
	err := testRetry(3).Do(context.Background(), "doomed-op", func() error {
		calls++
		return sentinel
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "doomed-op failed after 3 attempts")
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := testRetry(5).Do(ctx, "cancelled-op", func() error {
		calls++
		cancel()
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

// A zero or negative attempt budget still runs the operation once instead of
// failing without ever calling it.
func TestRetryClampsAttemptsToOne(t *testing.T) {
	for _, attempts := range []int{0, -1} {
		calls := 0
		err := testRetry(attempts).Do(context.Background(), "clamped-op", func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	}

	sentinel := errors.New("persistent")
	err := testRetry(0).Do(context.Background(), "clamped-op", func() error {
		return sentinel
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "failed after 1 attempts")
}

func TestRetryNoRetryOnImmediateSuccess(t *testing.T) {
	calls := 0
	err := testRetry(3).Do(context.Background(), "healthy-op", func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
