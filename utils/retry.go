package utils

import (
	"context"
	"fmt"
	"time"

	"amazon-scraper/logger"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *logger.Logger
}

// Do executes fn with exponential back-off retry logic. The context bounds
// the waits between attempts, not fn itself.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func() error) error {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := r.BaseDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < attempts {
			r.Logger.Warn().
				Str("operation", operationName).
				Int("attempt", attempt).
				Int("max_attempts", attempts).
				Dur("next_delay", delay).
				Err(lastErr).
				Msg("Operation failed, retrying")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempts, lastErr)
}
