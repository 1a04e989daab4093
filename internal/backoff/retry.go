package backoff

import (
	"context"
	"errors"
	"time"
)

// ErrMaxAttemptsExhausted is returned when all retry attempts failed.
var ErrMaxAttemptsExhausted = errors.New("max retry attempts exhausted")

// Retry calls fn up to maxAttempts times, sleeping per policy between
// failures. It returns the number of attempts made and nil on success, the
// context error if ctx ends first, or ErrMaxAttemptsExhausted joined with the
// last failure.
func Retry(ctx context.Context, policy Policy, maxAttempts int, fn func(attempt int) error) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}
		if lastErr = fn(attempt); lastErr == nil {
			return attempt, nil
		}
		if attempt < maxAttempts {
			if err := Sleep(ctx, policy.Delay(attempt)); err != nil {
				return attempt, err
			}
		}
	}
	return maxAttempts, errors.Join(ErrMaxAttemptsExhausted, lastErr)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
