package embedding

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidMaxAttempts is returned when RetryWithBackoff is asked for no attempts.
var ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

// RetryWithBackoff runs op up to maxAttempts times while retryable(err) holds,
// sleeping baseDelay, 2*baseDelay, 4*baseDelay... between attempts.
// The last error is returned; a done ctx ends the loop with ctx.Err().
func RetryWithBackoff(
	ctx context.Context, maxAttempts int, baseDelay time.Duration,
	retryable func(error) bool, op func(ctx context.Context) error,
) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil || !retryable(lastErr) || attempt == maxAttempts {
			return lastErr
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return lastErr
}
