// Package export implements the bulk extraction pipeline: the export session
// orchestrator, per-asset-type processors with paginated listing and
// retry/backoff, the checkpoint writer, and the cron scheduler.
package export

import (
	"context"
	"log/slog"
	"time"

	"bi-atlas/internal/domain"
)

// Retry timing constants.
const (
	retryBaseDelay = time.Second
	retryMaxDelay  = 30 * time.Second
)

// RetryPolicy retries an operation with exponential backoff, distinguishing
// retryable errors via a classification predicate. Every remote call site in
// the pipeline shares this one policy implementation.
type RetryPolicy struct {
	MaxAttempts int
	Retryable   func(error) bool
	Logger      *slog.Logger
}

// backoffDelay computes min(2^attempt * 1s, 30s) for a zero-based attempt.
func backoffDelay(attempt int) time.Duration {
	d := retryBaseDelay << uint(attempt)
	if d > retryMaxDelay || d <= 0 {
		return retryMaxDelay
	}
	return d
}

// Do runs fn until it succeeds, returns a non-retryable error, exhausts
// MaxAttempts, or the context is cancelled.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = domain.IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			if p.Logger != nil {
				p.Logger.Warn("retrying after transient error",
					"op", op, "attempt", attempt+1, "delay", delay, "error", lastErr)
			}
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
