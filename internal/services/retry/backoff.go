package retry

import (
	"context"
	"time"

	"github.com/ochronus/gozenodo/internal/services/zenodo"
)

// Config controls retry behavior.
type Config struct {
	// Attempts is the total number of attempts (including the first).
	// If zero or negative, DefaultAttempts is used.
	Attempts int

	// BaseDelay is the starting delay. Each retry is doubled (exponential backoff).
	// If zero, DefaultBaseDelay is used.
	BaseDelay time.Duration

	// MaxDelay caps the delay between attempts.
	// If zero, DefaultMaxDelay is used.
	MaxDelay time.Duration

	// ShouldRetry decides whether an error is worth another attempt.
	// If nil, only zenodo transport errors are retried: business failures
	// and configuration errors would fail the same way again.
	ShouldRetry func(error) bool

	// OnRetry, if set, is called before sleeping with the failed attempt
	// number (starting at 1), the error and the upcoming delay.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Sleeper allows tests to skip real sleeping. When nil, a timer that
	// honors ctx cancellation is used.
	Sleeper func(time.Duration)
}

const (
	DefaultAttempts  = 3
	DefaultBaseDelay = 500 * time.Millisecond
	DefaultMaxDelay  = 30 * time.Second
)

// Do runs op until it succeeds, returns an error that should not be retried,
// or runs out of attempts. The last error is returned.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	base := cfg.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}

	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	if base > maxDelay {
		base = maxDelay
	}

	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = zenodo.IsTransport
	}

	var lastErr error
	delay := base
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == attempts-1 || !shouldRetry(err) {
			return lastErr
		}

		// No jitter, a single CLI user does not cause thundering herds.
		wait := delay
		if delay < maxDelay/2 {
			delay *= 2
		} else {
			delay = maxDelay
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, wait)
		}

		if cfg.Sleeper != nil {
			cfg.Sleeper(wait)
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return lastErr
}
