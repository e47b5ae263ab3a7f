package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sowinskl/go-syscmd/logging"
)

// DefaultPublishTimeout bounds a single audit publish.
const DefaultPublishTimeout = 2 * time.Second

// NewAuditHook returns a logrus hook that publishes every marked entry
// (executed command lines and stop requests) through pub. Events are dropped
// while the broker is unreachable.
func NewAuditHook(pub Publisher, timeout time.Duration) *logging.MarkerFilterHook {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return logging.NewMarkerFilterHook(func(e *logrus.Entry) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		err := pub.PublishEvent(ctx, EventFromEntry(e))
		if errors.Is(err, ErrNotConnected) || errors.Is(err, ErrShutdown) {
			return nil
		}
		return err
	})
}

// EventFromEntry converts a marked log entry into an audit Event.
func EventFromEntry(e *logrus.Entry) Event {
	ev := Event{
		Level:   e.Level.String(),
		Message: e.Message,
		Time:    e.Time.UTC(),
	}
	for k, v := range e.Data {
		switch k {
		case logging.MarkerField:
			ev.Marker = fmt.Sprint(v)
		case "execution_id":
			ev.ExecutionID = fmt.Sprint(v)
		default:
			if ev.Fields == nil {
				ev.Fields = make(map[string]any)
			}
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			ev.Fields[k] = v
		}
	}
	return ev
}
