package llmgateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

// RetryConfig configures the gateway's retry policy, adapted from the
// pack's hand-rolled exponential-backoff-with-jitter into a thin wrapper
// over github.com/cenkalti/backoff, which already implements jittered
// exponential backoff correctly.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	MaxElapsedTime time.Duration
}

func (c *RetryConfig) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 200 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.MaxElapsedTime <= 0 {
		c.MaxElapsedTime = 30 * time.Second
	}
}

func (c RetryConfig) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialDelay
	b.MaxInterval = c.MaxDelay
	b.MaxElapsedTime = c.MaxElapsedTime
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.MaxAttempts-1)), ctx)
}

// run retries fn with exponential backoff up to MaxAttempts, honoring ctx
// cancellation. Every error is treated as retryable; a caller that needs
// a non-retryable error bubbles it as a backoff.Permanent.
func run[T any](ctx context.Context, c RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	op := func() error {
		var err error
		result, err = fn()
		return err
	}
	if err := backoff.Retry(op, c.newBackoff(ctx)); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func (c RetryConfig) run(ctx context.Context, fn func() (string, error)) (string, error) {
	return run(ctx, c, fn)
}
