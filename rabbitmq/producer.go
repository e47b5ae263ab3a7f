package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Event is a command audit record.
type Event struct {
	ExecutionID string         `json:"execution_id,omitempty"`
	Marker      string         `json:"marker"`
	Level       string         `json:"level"`
	Message     string         `json:"message"`
	Time        time.Time      `json:"time"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// Publisher publishes audit events.
type Publisher interface {
	PublishEvent(ctx context.Context, ev Event) error
}

var _ Publisher = (*Client)(nil)

// PublishEvent publishes ev to the configured exchange and routing key.
func (c *Client) PublishEvent(ctx context.Context, ev Event) error {
	return c.Publish(ctx, ev, c.cfg.Exchange, c.cfg.RoutingKey, false)
}

// Publish marshals payload as JSON and publishes it persistently.
func (c *Client) Publish(ctx context.Context, payload any, exchange, routingKey string, mandatory bool) error {
	channel, err := c.channel()
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	return channel.PublishWithContext(ctx,
		exchange,
		routingKey,
		mandatory,
		false, // immediate - deprecated
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
		},
	)
}
