package utils

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryConfig contains retry configuration
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryableFunc is a function that can be retried
type RetryableFunc func(ctx context.Context) error

// RetryWithBackoff retries a function with exponential backoff. Used for
// transient create-time failures (e.g. a freshly created role that cannot
// be assumed yet), not for status polling.
func RetryWithBackoff(ctx context.Context, config RetryConfig, fn RetryableFunc) error {
	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := fn(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * config.BackoffMultiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

// PollFunc reports whether polling is done. Returning done=true stops the
// poll; a non-nil error aborts it immediately.
type PollFunc func(ctx context.Context) (done bool, err error)

// PollFixed polls fn at a constant interval up to maxAttempts times. Status
// polling against the cloud API is fixed-interval by design: the attempt cap
// is the only timeout.
func PollFixed(ctx context.Context, maxAttempts int, interval time.Duration, fn PollFunc) error {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during poll: %w", ctx.Err())
		case <-time.After(interval):
		}
	}

	return fmt.Errorf("exhausted %d attempts (interval %s)", maxAttempts, interval)
}

// IsRetryableError determines if an error should trigger a retry
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"throttled",
		"rate exceeded",
		"temporary",
		"timeout",
		"connection refused",
		"connection reset",
		"toomanyrequests",
		"serviceunavailable",
		"requesttimeout",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return false
}
