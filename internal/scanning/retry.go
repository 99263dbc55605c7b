package scanning

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a failed identification is attempted
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	// BaseDelay is the wait before the first retry; it doubles on every retry
	BaseDelay time.Duration
	// Jitter randomizes each wait by ±Jitter (0 to 1); 0 waits exactly
	Jitter float64

	timer backoff.Timer
}

// DefaultRetryPolicy is three attempts waiting 1s then 2s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = p.Jitter
	exp.MaxInterval = time.Duration(math.MaxInt64)
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// WithRetry runs op until it succeeds, the attempts run out or ctx is done.
// Escalations are returned on first occurrence since asking again gives the
// same answer. Otherwise the last error is returned unchanged.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, op func() (T, error)) (T, error) {
	var (
		result  T
		attempt int
	)

	operation := func() error {
		attempt++
		value, err := op()
		if err != nil {
			if IsEscalation(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = value
		return nil
	}

	notify := func(err error, delay time.Duration) {
		slog.Warn("Identification attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"delay", delay,
			"error", err,
		)
	}

	err := backoff.RetryNotifyWithTimer(operation, policy.backOff(ctx), notify, policy.timer)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
