package execution

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rxtech-lab/atlas-trading/pkg/errors"
)

// RetryPolicy bounds venue call retries. Only transient transport failures
// are retried; a venue rejection is definitive and a timeout is an unknown
// outcome that must be reconciled, not retried blindly.
type RetryPolicy struct {
	MaxAttempts     uint64        `yaml:"max_attempts" validate:"gte=1"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// DefaultRetryPolicy mirrors the bounded policy used for venue transports.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// retryable reports whether the error is a transient transport failure.
func retryable(err error) bool {
	return errors.HasCode(err, errors.ErrCodeVenueUnavailable)
}

// Do runs fn with exponential backoff under the policy. Non-transient errors
// abort immediately. When attempts are exhausted the last error is wrapped
// with ErrCodeRetriesExhausted so callers can surface an order-level failure
// instead of crashing the service.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval

	// A zero-value policy means a single attempt; the subtraction must not
	// wrap into an unbounded retry loop.
	var retries uint64
	if p.MaxAttempts > 0 {
		retries = p.MaxAttempts - 1
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, retries), ctx)

	err := backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}

		if !retryable(err) {
			return backoff.Permanent(err)
		}

		return err
	}, policy)
	if err == nil {
		return nil
	}

	if retryable(err) {
		return errors.Wrap(errors.ErrCodeRetriesExhausted, "venue call retries exhausted", err)
	}

	return err
}
