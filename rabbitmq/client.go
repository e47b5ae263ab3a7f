package rabbitmq

import (
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Client manages the RabbitMQ connection and channel used for command audit
// events and stop requests.
type Client struct {
	cfg    Config
	log    logrus.FieldLogger
	conn   *amqp.Connection
	ch     *amqp.Channel
	mu     sync.RWMutex // Protects access to conn, ch, closed and isReady
	closed bool

	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error

	// isReady is true only when both Connection and Channel are established
	isReady bool
}

// NewClient connects and returns a Client. A failed initial connection is
// returned as an error; later drops are repaired in the background until
// Close is called.
func NewClient(cfg Config, log logrus.FieldLogger) (*Client, error) {
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	client := &Client{
		cfg: cfg,
		log: log.WithField("component", "rabbitmq"),
	}

	if err := client.connect(); err != nil {
		return nil, err
	}

	go client.handleReconnection()

	return client, nil
}

// Close shuts down the connection cleanly.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.isReady = false
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Ready reports whether the client can publish right now.
func (c *Client) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isReady
}

// channel returns the live channel, ErrShutdown after Close, or
// ErrNotConnected while a reconnect is pending.
func (c *Client) channel() (*amqp.Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.closed:
		return nil, ErrShutdown
	case !c.isReady:
		return nil, ErrNotConnected
	}
	return c.ch, nil
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// handleReconnection waits for the connection or channel to drop and
// reconnects until it succeeds or the client is closed.
func (c *Client) handleReconnection() {
	for {
		if c.isClosed() {
			return
		}

		c.mu.RLock()
		connClose, chanClose := c.notifyConnClose, c.notifyChanClose
		c.mu.RUnlock()

		select {
		case err := <-connClose:
			if c.isClosed() {
				return
			}
			c.log.Warnf("Connection lost: %v", err)
		case err := <-chanClose:
			if c.isClosed() {
				return
			}
			c.log.Warnf("Channel lost: %v", err)
		}

		c.setReady(false)

		for {
			if c.isClosed() {
				return
			}

			c.log.Info("Attempting to reconnect...")

			if err := c.connect(); err != nil {
				c.log.Errorf("Reconnection failed: %v. Retrying in %v...", err, c.cfg.ReconnectDelay)
				time.Sleep(c.cfg.ReconnectDelay)
				continue
			}

			c.log.Info("Reconnected")
			break
		}
	}
}

func (c *Client) connect() error {
	conn, err := amqp.DialConfig(c.cfg.URL, amqp.Config{
		Properties: amqp.Table{"connection_name": c.cfg.AppName},
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if c.cfg.Exchange != "" {
		if err := ch.ExchangeDeclare(c.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return fmt.Errorf("declare exchange %q: %w", c.cfg.Exchange, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	c.ch = ch
	c.notifyChanClose = make(chan *amqp.Error, 1)
	c.notifyConnClose = make(chan *amqp.Error, 1)
	c.ch.NotifyClose(c.notifyChanClose)
	c.conn.NotifyClose(c.notifyConnClose)
	c.isReady = true
	return nil
}

func (c *Client) setReady(ready bool) {
	c.mu.Lock()
	c.isReady = ready
	c.mu.Unlock()
}
