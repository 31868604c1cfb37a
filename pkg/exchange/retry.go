package exchange

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/bondarb/core/pkg/contract"
)

// RetryOptions bounds the exponential backoff applied to transient client
// failures (spec §5 "every outbound client call carries a deadline...
// triggers local retry with exponential backoff bounded by a maximum
// attempts count").
type RetryOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryOptions matches spec §7's "3 attempts, jittered".
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// WithRetry runs fn, retrying contract.ErrUpstreamUnavailable and
// contract.ErrRateLimited with jittered exponential backoff. Any other
// error, or exhausting attempts, is returned unmodified so the caller can
// log-and-skip per spec §7 — retry never escalates a failure to fatal.
func WithRetry(ctx context.Context, opts RetryOptions, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, contract.ErrUpstreamUnavailable) && !errors.Is(lastErr, contract.ErrRateLimited) {
			return lastErr
		}
		if attempt == opts.MaxAttempts-1 {
			break
		}
		delay := opts.BaseDelay * time.Duration(1<<uint(attempt))
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
		jitter := time.Duration(rand.Int63n(int64(delay) / 2))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay + jitter):
		}
	}
	return lastErr
}
