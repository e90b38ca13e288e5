// Package retry runs durable writes under a capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"warden/pkg/platform/sentinel"
)

// Policy bounds a retry loop. Attempts is the total number of calls,
// including the first.
type Policy struct {
	Attempts        uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultPolicy is three attempts inside two seconds.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:        3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		MaxElapsed:      2 * time.Second,
	}
}

// Notify is called before each wait with the failure and the delay.
type Notify func(err error, wait time.Duration)

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls op until it succeeds, returns a permanent error, the policy is
// exhausted or ctx is done. Exhausted retries are wrapped with
// sentinel.ErrUnavailable so callers can tell them from permanent failures.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error, notify Notify) error {
	if p.Attempts == 0 {
		p = DefaultPolicy()
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.MaxElapsedTime = p.MaxElapsed

	b := backoff.WithContext(backoff.WithMaxRetries(eb, p.Attempts-1), ctx)

	var permanent bool
	err := backoff.RetryNotify(func() error {
		err := op(ctx)
		var perr *backoff.PermanentError
		if errors.As(err, &perr) {
			permanent = true
		}
		return err
	}, b, func(err error, wait time.Duration) {
		if notify != nil {
			notify(err, wait)
		}
	})
	if err == nil || permanent {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	return errors.Join(sentinel.ErrUnavailable, err)
}
