package retry

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidAttempts = errors.New("retry: attempts must be greater than zero")
	ErrNegativeDelay   = errors.New("retry: delay must not be negative")
)

func validate(attempts int, delay time.Duration) error {
	if attempts <= 0 {
		return ErrInvalidAttempts
	}
	if delay < 0 {
		return ErrNegativeDelay
	}
	return nil
}

func entryFor(log logrus.FieldLogger, policy, label string) *logrus.Entry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return log.WithFields(logrus.Fields{"retry_policy": policy, "label": label})
}
