package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/treerule/internal/pathstore"
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *pathstore.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

// withRetry runs op up to MaxRetries times, sleeping wait(attempt) between
// retryable failures. It returns the last error and the number of retries.
func withRetry(ctx context.Context, log *slog.Logger, wait func(int) time.Duration, what string, op func() error) (int, error) {
	var lastErr error
	for attempt := range MaxRetries {
		lastErr = op()
		if lastErr == nil || !IsRetryable(lastErr) {
			return attempt, lastErr
		}
		if attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable pathstore error", "target", what, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(wait(attempt)):
		case <-ctx.Done():
			return attempt, ctx.Err()
		}
	}
	return MaxRetries - 1, lastErr
}
