package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

// RetryableFunc defines a function that can be retried
type RetryableFunc func() error

// RetryConfig holds the configuration for retrying operations
type RetryConfig struct {
	// Operation names the retried call in log lines.
	Operation       string
	MaxAttempts     int
	BackoffStrategy BackoffStrategy
	Logger          logger.Logger
	// RetryableErrors restricts retries to errors matching one of these sentinels.
	// When empty, apperrors.IsRetryable decides.
	RetryableErrors []error
}

// ExhaustedError is returned when every attempt failed with a retryable error
type ExhaustedError struct {
	Operation string
	Attempts  int
	Last      error
}

func (e *ExhaustedError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("all %d retry attempts failed, last error: %v", e.Attempts, e.Last)
	}
	return fmt.Sprintf("%s: all %d retry attempts failed, last error: %v", e.Operation, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// IsExhausted reports whether err came from running out of attempts
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts run out or ctx is done. Backoff is applied between attempts only.
func Retry(ctx context.Context, fn RetryableFunc, cfg *RetryConfig) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled by context: %w", err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr, cfg.RetryableErrors) {
			cfg.Logger.Warn("Non-retryable error encountered, giving up",
				"operation", cfg.Operation,
				"error", lastErr,
				"attempt", attempt)
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		backoff := cfg.BackoffStrategy.NextBackoff(attempt)

		cfg.Logger.Info("Retrying after error",
			"operation", cfg.Operation,
			"error", lastErr,
			"attempt", attempt,
			"maxAttempts", cfg.MaxAttempts,
			"backoff", backoff)

		if err := sleep(ctx, backoff); err != nil {
			return fmt.Errorf("retry cancelled by context during backoff: %w", err)
		}
	}

	return &ExhaustedError{Operation: cfg.Operation, Attempts: cfg.MaxAttempts, Last: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isRetryable(err error, retryableErrors []error) bool {
	if len(retryableErrors) == 0 {
		return apperrors.IsRetryable(err)
	}

	for _, retryableErr := range retryableErrors {
		if errors.Is(err, retryableErr) {
			return true
		}
	}

	return false
}

// RetryWithDiscard retries fn and hands the final error to discardFn when
// it still fails
func RetryWithDiscard(ctx context.Context, fn RetryableFunc, cfg *RetryConfig, discardFn func(error) error) error {
	err := Retry(ctx, fn, cfg)

	if err != nil {
		cfg.Logger.Error("All retries failed, applying discard policy",
			"operation", cfg.Operation,
			"error", err,
			"maxAttempts", cfg.MaxAttempts)
		return discardFn(err)
	}
	return nil
}
