package retry

import (
	"context"
	"time"

	retrygo "github.com/avast/retry-go/v5"
	"github.com/sirupsen/logrus"

	"github.com/sowinskl/go-syscmd/failure"
)

// Exception configures OnError.
type Exception struct {
	// Kind is the retryable failure kind. Errors whose kind equals or refines
	// it are retried; anything else is returned immediately.
	Kind failure.Kind

	// Attempts is the total number of invocations allowed. Must be > 0.
	Attempts int

	// Delay is the fixed pause between attempts.
	Delay time.Duration

	// Label names the operation in log lines.
	Label string

	// BeforeRetry runs after every qualifying failure, including the last one.
	// It typically resets external state. Optional.
	BeforeRetry func()

	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// OnError invokes op until it succeeds, fails with a non-retryable error, or
// the attempt budget is spent. On exhaustion the last qualifying error is
// returned verbatim. If ctx ends while waiting between attempts, the context
// error is returned instead.
func OnError[T any](ctx context.Context, p Exception, op func() (T, error)) (T, error) {
	var out T
	if err := validate(p.Attempts, p.Delay); err != nil {
		return out, err
	}
	log := entryFor(p.Logger, policyException, p.Label)

	var (
		lastErr    error
		qualifying int
		retryable  = true
	)

	err := retrygo.New(
		retrygo.Attempts(uint(p.Attempts)),
		retrygo.Delay(p.Delay),
		retrygo.DelayType(retrygo.FixedDelay),
		retrygo.Context(ctx),
	).Do(func() error {
		recordAttempt(policyException)
		v, err := op()
		if err == nil {
			out = v
			lastErr = nil
			return nil
		}

		lastErr = err
		if !failure.Matches(err, p.Kind) {
			retryable = false
			return retrygo.Unrecoverable(err)
		}

		if p.BeforeRetry != nil {
			p.BeforeRetry()
		}
		qualifying++

		if left := p.Attempts - qualifying; left > 0 {
			log.Tracef("Discarded %v from %q. Sleeping for %s and retrying.", err, p.Label, p.Delay)
		} else {
			log.Tracef("Discarded %v from %q. Giving up.", err, p.Label)
		}
		return err
	})

	switch {
	case err == nil:
		recordCall(policyException, resultSuccess)
		return out, nil
	case !retryable:
		recordCall(policyException, resultPropagated)
		return out, lastErr
	case lastErr != nil && qualifying >= p.Attempts:
		recordCall(policyException, resultExhausted)
		return out, lastErr
	}

	recordCall(policyException, resultAborted)
	if cerr := context.Cause(ctx); cerr != nil {
		return out, cerr
	}
	return out, err
}
