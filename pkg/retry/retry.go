// Package retry provides a bounded retry loop with pluggable backoff.
// The navigation controller drives it with the typed-error classifier;
// callers that know better supply their own predicate.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "linkscraper/pkg/errors"
	"linkscraper/pkg/logger"
)

// Operation is one attempt of a retryable unit of work.
type Operation func() error

// Config bounds a retry loop.
type Config struct {
	// MaxAttempts caps the total attempts, first try included. Zero or
	// negative means retry until the error is unretryable.
	MaxAttempts int
	// Backoff yields the wait between attempts. Nil retries immediately.
	Backoff BackoffStrategy
	// RetryIf decides whether an error deserves another attempt. Nil
	// means DefaultRetryIf.
	RetryIf func(error) bool
	// OnRetry runs after each failed attempt, before the wait.
	OnRetry func(attempt int, err error, delay time.Duration)
	// Context cancels the loop between attempts.
	Context context.Context
	Logger  logger.Logger
}

// DefaultRetryIf retries typed connectivity and navigation errors and
// untyped ones, and never retries context cancellation.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	var e *errs.Error
	if errors.As(err, &e) {
		return errs.IsRetryable(e.Type)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return true
}

// Do runs op until it succeeds, fails with an unretryable error, or the
// attempt budget runs out. The final error wraps the last attempt's.
func Do(op Operation, cfg *Config) error {
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("Operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !retryIf(err) {
			return err
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			break
		}

		var delay time.Duration
		if cfg.Backoff != nil {
			delay = cfg.Backoff.NextDelay(attempt)
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		log.WarnWithFields("Retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": cfg.MaxAttempts,
			"delay_ms":     delay.Milliseconds(),
			"error":        err.Error(),
		})

		if werr := Wait(ctx, delay); werr != nil {
			return fmt.Errorf("retry cancelled: %w", werr)
		}
	}

	return fmt.Errorf("gave up after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
