package providers

import (
	"context"
	"time"

	retry "agentcore/internal/retryutil"
)

// RetryPolicy wraps retryutil.Config with provider-aware error
// classification: an attempt is retried only when IsRetryable says so, and
// a Retry-After hint surfaced by op (e.g. from a 429 response header)
// overrides the computed backoff for the next attempt only.
type RetryPolicy struct {
	Config      retry.Config
	IsRetryable func(error) bool
}

// DefaultRetryPolicy retries rate limits, timeouts, and server errors, making
// at most 3 attempts in total, with exponential backoff starting at 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Config: retry.Exponential(3, time.Second, 30*time.Second),
		IsRetryable: func(err error) bool {
			pe, ok := AsProviderError(err)
			return ok && pe.Reason.IsRetryable()
		},
	}
}

// Do runs op, retrying per the policy. op returns a retryAfter duration
// alongside its error; when positive it overrides the computed backoff for
// the attempt that follows.
func (p RetryPolicy) Do(ctx context.Context, op func(attempt int) (retryAfter time.Duration, err error)) error {
	cfg := p.Config
	if cfg.MaxAttempts <= 0 {
		cfg = retry.DefaultConfig()
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		retryAfter, err := op(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if p.IsRetryable != nil && !p.IsRetryable(err) {
			return err
		}
		if attempt >= cfg.MaxAttempts {
			break
		}

		sleep := delay
		if retryAfter > 0 {
			sleep = retryAfter
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		delay = time.Duration(float64(delay) * cfg.Factor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return lastErr
}
