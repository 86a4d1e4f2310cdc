// Package nats connects the telemetry hub to a NATS server.
//
// Hub topics are written MQTT-style ("telemetry/actions/+"). Subject maps
// them to NATS subjects ("telemetry.actions.*") and Topic maps received
// subjects back, so handlers see the same topic form on either transport.
package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
)

var (
	ErrNotConnected    = errors.New("nats: client not connected")
	ErrInvalidTopic    = errors.New("nats: topic cannot be empty")
	ErrNilHandler      = errors.New("nats: handler cannot be nil")
	ErrConnectFailed   = errors.New("nats: connection failed")
	ErrPublishFailed   = errors.New("nats: publish failed")
	ErrSubscribeFailed = errors.New("nats: subscribe failed")
)

// Logger is satisfied by *slog.Logger and logging.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Client is a NATS connection with tracked subscriptions.
type Client struct {
	nc *natsgo.Conn

	mu   sync.Mutex
	subs map[string]*natsgo.Subscription

	logger   Logger
	loggerMu sync.RWMutex
}

// Subject converts a slash-separated topic with MQTT wildcards to a NATS subject.
func Subject(topic string) string {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	for i, p := range parts {
		switch p {
		case "+":
			parts[i] = "*"
		case "#":
			parts[i] = ">"
		}
	}
	return strings.Join(parts, ".")
}

// Topic converts a received NATS subject back to slash form.
func Topic(subject string) string {
	return strings.ReplaceAll(subject, ".", "/")
}

func options(cfg config.NATSConfig, c *Client) []natsgo.Option {
	opts := []natsgo.Option{
		natsgo.Name(cfg.Name),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(time.Duration(cfg.ReconnectWait) * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if logger := c.getLogger(); logger != nil && err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		natsgo.ErrorHandler(func(_ *natsgo.Conn, sub *natsgo.Subscription, err error) {
			if logger := c.getLogger(); logger != nil {
				subject := ""
				if sub != nil {
					subject = sub.Subject
				}
				logger.Error("NATS async error", "subject", subject, "error", err)
			}
		}),
	}
	if cfg.Username != "" {
		opts = append(opts, natsgo.UserInfo(cfg.Username, cfg.Password))
	}
	return opts
}

// Connect dials the configured NATS server.
func Connect(cfg config.NATSConfig) (*Client, error) {
	c := &Client{subs: make(map[string]*natsgo.Subscription)}

	nc, err := natsgo.Connect(cfg.URL, options(cfg, c)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	c.nc = nc
	return c, nil
}

// SetLogger sets the logger for connection and handler errors.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// Send publishes payload on the subject for topic.
func (c *Client) Send(topic string, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := c.nc.Publish(Subject(topic), payload); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Listen subscribes handler to topic. Handler errors and panics are logged.
func (c *Client) Listen(topic string, handler func(topic string, payload []byte) error) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if handler == nil {
		return ErrNilHandler
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	sub, err := c.nc.Subscribe(Subject(topic), func(msg *natsgo.Msg) {
		c.dispatch(handler, Topic(msg.Subject), msg.Data)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	c.mu.Lock()
	if old, ok := c.subs[topic]; ok {
		old.Unsubscribe() //nolint:errcheck // replaced subscription
	}
	c.subs[topic] = sub
	c.mu.Unlock()
	return nil
}

func (c *Client) dispatch(handler func(string, []byte) error, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("NATS handler panic recovered", "topic", topic, "panic", r)
			}
		}
	}()
	if err := handler(topic, payload); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("NATS handler returned error", "topic", topic, "error", err)
		}
	}
}

// IsConnected reports whether the connection is currently up.
func (c *Client) IsConnected() bool {
	return c != nil && c.nc != nil && c.nc.IsConnected()
}

// HealthCheck flushes the connection, which round-trips a PING.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := c.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats health check: %w", err)
	}
	return nil
}

// Close drains subscriptions and closes the connection.
func (c *Client) Close() error {
	if c == nil || c.nc == nil {
		return nil
	}
	c.mu.Lock()
	c.subs = make(map[string]*natsgo.Subscription)
	c.mu.Unlock()

	if err := c.nc.Drain(); err != nil {
		c.nc.Close()
		return fmt.Errorf("draining nats connection: %w", err)
	}
	return nil
}
