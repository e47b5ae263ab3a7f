package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/sowinskl/go-syscmd/logging"
)

type HandlerFunc func(ctx context.Context, body []byte) error

// StopRequest asks the receiving process to destroy its in-flight command.
type StopRequest struct {
	Reason string `json:"reason"`
}

// Stopper is implemented by *syscmd.Executor.
type Stopper interface {
	RequestStop() bool
}

// StopHandler decodes StopRequest messages and forwards them to s. An empty
// body is a stop request without a reason.
func StopHandler(s Stopper, log logrus.FieldLogger) HandlerFunc {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(_ context.Context, body []byte) error {
		var req StopRequest
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return retry.Unrecoverable(fmt.Errorf("%w: %v", ErrBadStop, err))
			}
		}
		stopped := s.RequestStop()
		log.WithFields(logrus.Fields{
			logging.MarkerField: logging.MarkerStop,
			"reason":            req.Reason,
			"stopped":           stopped,
		}).Info("Remote stop request")
		return nil
	}
}

// ConsumeStopRequests routes StopRequest messages from config.Queue to s
// until ctx is done. Deliveries are handled one at a time.
func (c *Client) ConsumeStopRequests(ctx context.Context, config Consumer, s Stopper) error {
	config.Workers = 1
	config.PrefetchCount = 1
	return c.StartConsumer(ctx, config, StopHandler(s, c.log))
}

// StartConsumer consumes config.Queue until ctx is done, running handler for
// every delivery. It resubscribes after the client reconnects.
func (c *Client) StartConsumer(ctx context.Context, config Consumer, handler HandlerFunc) error {
	config = config.withDefaults()
	log := c.log.WithField("queue", config.Queue)

	for ctx.Err() == nil {
		channel, err := c.channel()
		if err != nil {
			if errors.Is(err, ErrShutdown) {
				return err
			}
			pause(ctx, time.Second)
			continue
		}

		msgs, err := subscribe(channel, config)
		if err != nil {
			log.Errorf("Subscribe failed: %v", err)
			pause(ctx, time.Second)
			continue
		}

		log.Debug("Consuming")
		c.consumeLoop(ctx, msgs, config, handler)
	}
	return nil
}

func subscribe(ch *amqp.Channel, config Consumer) (<-chan amqp.Delivery, error) {
	if err := ch.Qos(config.PrefetchCount, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	// Manual ack: a stop request is only acked once it reached the executor.
	return ch.Consume(config.Queue, config.Name, false, false, false, false, nil)
}

func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (c *Client) consumeLoop(ctx context.Context, msgs <-chan amqp.Delivery, config Consumer, handler HandlerFunc) {
	var wg sync.WaitGroup
	for range config.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-msgs:
					if !ok {
						return
					}
					c.processMessage(ctx, msg, config, handler)
				}
			}
		}()
	}
	wg.Wait()
}

func (c *Client) processMessage(ctx context.Context, msg amqp.Delivery, config Consumer, handler HandlerFunc) {
	err := handle(ctx, msg.Body, config, handler, c.log)

	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			c.log.Errorf("Failed to ack message: %v", ackErr)
		}
		return
	}

	c.log.Errorf("Message failed after retries. Error: %v. Rejecting.", err)

	// Reject(false) dead-letters the message if the queue has a DLX.
	if nackErr := msg.Reject(false); nackErr != nil {
		c.log.Errorf("Failed to reject message: %v", nackErr)
	}
}

func handle(ctx context.Context, body []byte, config Consumer, handler HandlerFunc, log logrus.FieldLogger) error {
	return retry.New(
		retry.Attempts(uint(config.RetryMax+1)),
		retry.Delay(config.RetryStart),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Errorf("Retry %d failed: %v", n, err)
		})).Do(func() error {
		return handler(ctx, body)
	})
}
