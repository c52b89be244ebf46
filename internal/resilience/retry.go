package resilience

import (
	"context"
	"log"
	"math"
	"math/rand"
	"time"

	"go-sales-etl/internal/model"
)

// WithRetry invokes op, retrying failures the predicate classifies as
// retryable. The wait before attempt n is
// min(initialDelay * factor^(n-1) + jitter, maxDelay). Non-retryable
// errors propagate immediately. When attempts are exhausted the last
// error is wrapped with the retries_exhausted kind. The attempt count is
// returned either way so callers can report it as a metric.
func WithRetry(ctx context.Context, cfg model.RetryConfig, retryable func(error) bool, op func(context.Context) error) (int, error) {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if !retryable(lastErr) {
			return attempt, lastErr
		}
		if attempt == maxAttempts {
			break
		}

		delay := backoffDelay(cfg, attempt)
		log.Printf("retry attempt %d/%d failed: %v (waiting %v)", attempt, maxAttempts, lastErr, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, model.NewError(model.ErrCancellationRequested, "", ctx.Err())
		case <-timer.C:
		}
	}
	return maxAttempts, model.NewError(model.ErrRetriesExhausted, "", lastErr)
}

// backoffDelay computes the exponential backoff for the attempt just
// failed, capped at MaxDelay.
func backoffDelay(cfg model.RetryConfig, attempt int) time.Duration {
	factor := cfg.BackoffFactor
	if factor <= 0 {
		factor = 2.0
	}
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(factor, float64(attempt-1)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.Jitter && delay > 0 {
		// up to 10% extra, still respecting the cap
		jitter := time.Duration(rand.Int63n(int64(delay)/10 + 1))
		if cfg.MaxDelay <= 0 || delay+jitter <= cfg.MaxDelay {
			delay += jitter
		}
	}
	if delay < 0 {
		delay = cfg.MaxDelay
	}
	return delay
}
