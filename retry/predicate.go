package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Predicate configures UntilTrue and UntilValid.
type Predicate struct {
	// Attempts is the total number of invocations allowed, the first one
	// included. Must be > 0.
	Attempts int

	// Delay is the pause between invocations. There is no pause after the
	// last one.
	Delay time.Duration

	// Label names the operation in log lines.
	Label string

	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

var errRejected = errors.New("retry: value rejected")

// UntilTrue invokes op until it returns true or attempts run out, and returns
// the last result. Running out of attempts is not an error; the only errors
// are an invalid Predicate and ctx ending between attempts.
func UntilTrue(ctx context.Context, p Predicate, op func() bool) (bool, error) {
	return UntilValid(ctx, p, op, func(ok bool) bool { return ok })
}

// UntilValid invokes op until valid accepts its result or attempts run out,
// and returns the last produced value whether or not it was accepted.
func UntilValid[T any](ctx context.Context, p Predicate, op func() T, valid func(T) bool) (T, error) {
	var last T
	if err := validate(p.Attempts, p.Delay); err != nil {
		return last, err
	}
	log := entryFor(p.Logger, policyPredicate, p.Label)

	// WithMaxRetries counts re-invocations, so the first call is not included.
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(p.Attempts-1)),
		ctx,
	)

	calls := 0
	err := backoff.RetryNotify(func() error {
		calls++
		recordAttempt(policyPredicate)
		last = op()
		if valid(last) {
			return nil
		}
		return errRejected
	}, b, func(_ error, wait time.Duration) {
		log.Tracef("%q not satisfied after attempt %d/%d. Sleeping for %s.", p.Label, calls, p.Attempts, wait)
	})

	switch {
	case err == nil:
		recordCall(policyPredicate, resultSuccess)
		return last, nil
	case calls >= p.Attempts:
		recordCall(policyPredicate, resultExhausted)
		return last, nil
	}

	recordCall(policyPredicate, resultAborted)
	return last, err
}
