package qstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// withRetry runs op, retrying transient failures with exponential
// backoff (base delay, doubling per attempt, context-aware sleep).
// Non-transient failures surface immediately; exhausting the retry
// budget surfaces ErrUnavailable wrapping the last cause.
func (s *Store) withRetry(ctx context.Context, name string, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * s.cfg.RetryBaseDelay
			s.logger.Debug("retrying store operation",
				"op", name,
				"attempt", attempt+1,
				"delay", delay)

			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %s: %w", ErrUnavailable, name, ctx.Err())
			case <-time.After(delay):
			}
		}

		err := op()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}

		lastErr = err
		s.logger.Warn("store operation failed",
			"op", name,
			"attempt", attempt+1,
			"error", err)
	}
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrUnavailable, name, s.cfg.MaxRetries, lastErr)
}

// isTransient classifies sqlite contention and connection errors as
// retryable. Row-not-found and context cancellation are not.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"database is locked",
		"database table is locked",
		"busy",
		"connection",
		"i/o error",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
