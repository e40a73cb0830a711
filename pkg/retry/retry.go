package retry

import (
	"context"
	"errors"
	"time"
)

// ErrMaxRetriesExceeded is returned once every attempt has failed
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// RetryConfig controls the exponential backoff schedule
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// WithExponentialBackoff runs operation until it succeeds, the error is
// classified as non-retryable, the context is cancelled, or MaxAttempts is
// reached. The delay doubles (per Multiplier) each attempt, capped at MaxDelay.
func WithExponentialBackoff(ctx context.Context, cfg RetryConfig, operation func() error, isRetryable func(error) bool) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2.0
	}

	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if isRetryable != nil && !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return errors.Join(ErrMaxRetriesExceeded, lastErr)
}
