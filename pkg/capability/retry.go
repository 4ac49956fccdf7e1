package capability

import (
	"context"
	"math"
	"math/rand"
	"time"

	"refinery/pkg/logx"
)

// RetryConfig defines bounded exponential backoff for capability calls.
type RetryConfig struct {
	MaxAttempts   int           // Total attempts including the first
	InitialDelay  time.Duration // Delay before the first retry
	MaxDelay      time.Duration // Cap on the backoff delay
	BackoffFactor float64       // Multiplier per retry
	Jitter        bool          // Randomize delays to avoid thundering herd
}

// DefaultRetryConfig provides reasonable defaults for capability retries.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:   3,
	InitialDelay:  100 * time.Millisecond,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
	Jitter:        true,
}

func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.Jitter {
		// Up to 25% random jitter.
		d += d * 0.25 * rand.Float64() //nolint:gosec // Jitter does not need crypto randomness
	}
	return time.Duration(d)
}

// call runs op with per-attempt timeout and bounded exponential backoff.
// Errors are classified before the retry decision; non-retryable failures
// surface immediately.
func call[T any](ctx context.Context, kind Kind, cfg RetryConfig, timeout time.Duration, logger *logx.Logger, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(cfg.delay(attempt - 1)):
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		result, err := op(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}

		// A per-attempt deadline expiry is a transient failure of this
		// attempt, not exhaustion of the caller's budget.
		if attemptCtx != ctx && attemptCtx.Err() != nil && ctx.Err() == nil {
			err = NewError(ErrorTypeTransient, kind, err)
		}

		lastErr = Classify(kind, err)
		if !ShouldRetry(lastErr) {
			logger.Debug("%s capability failed without retry: %v", kind, lastErr)
			return zero, lastErr
		}
		logger.Warn("%s capability attempt %d/%d failed: %v", kind, attempt, attempts, lastErr)
	}

	return zero, lastErr
}
