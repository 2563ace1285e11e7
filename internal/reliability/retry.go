package reliability

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/airelay/qwen-bridge/internal/logger"
)

// RetryConfig defines configuration for retry behavior
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a sensible default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// permanentError wraps an error that must not be retried
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as non-retryable; the retry loop surfaces
// it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryableOperation defines a function that can be retried
type RetryableOperation func() error

// RetryExecutor handles retry logic with exponential backoff
type RetryExecutor struct {
	config RetryConfig
}

// NewRetryExecutor creates a new retry executor with the given configuration
func NewRetryExecutor(config RetryConfig) *RetryExecutor {
	return &RetryExecutor{config: config}
}

// ExecuteWithRetry executes an operation with retry logic
func (r *RetryExecutor) ExecuteWithRetry(ctx context.Context, operation RetryableOperation) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 1 {
				logger.Info(ctx, "Operation succeeded after retry",
					"successful_attempt", attempt)
			}
			return nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			logger.Error(ctx, "Non-retryable error encountered", perm.err,
				"attempt", attempt)
			return perm.err
		}

		if !r.isRetryableError(err) {
			logger.Error(ctx, "Error not classified as retryable", err,
				"attempt", attempt)
			return err
		}

		if attempt >= r.config.MaxAttempts {
			logger.Error(ctx, "Max retry attempts reached", err,
				"max_attempts", r.config.MaxAttempts)
			break
		}

		delay := r.calculateBackoff(attempt)
		logger.Warn(ctx, "Operation failed, retrying",
			"attempt", attempt,
			"max_attempts", r.config.MaxAttempts,
			"delay_ms", delay.Milliseconds(),
			"error", err.Error())

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			logger.Warn(ctx, "Retry cancelled by context",
				"attempt", attempt,
				"context_error", ctx.Err())
			return ctx.Err()
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", r.config.MaxAttempts, lastErr)
}

// calculateBackoff doubles the delay per attempt, capped at MaxDelay
func (r *RetryExecutor) calculateBackoff(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1))
	if time.Duration(delay) > r.config.MaxDelay {
		delay = float64(r.config.MaxDelay)
	}
	return time.Duration(delay)
}

// isRetryableError checks if an error should trigger a retry
func (r *RetryExecutor) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"no such host",
		"context deadline exceeded",
		"i/o timeout",
		"broken pipe",
		"status 5",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// RetryWithConfig executes an operation with retry using the provided config
func RetryWithConfig(ctx context.Context, config RetryConfig, operation RetryableOperation) error {
	return NewRetryExecutor(config).ExecuteWithRetry(ctx, operation)
}

// Retry executes an operation with default retry configuration
func Retry(ctx context.Context, operation RetryableOperation) error {
	return RetryWithConfig(ctx, DefaultRetryConfig(), operation)
}
