// Package redis connects the hub to Redis, which backs the shared
// pending-action bridge.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrDisabled is returned by Connect when Redis is not enabled.
var ErrDisabled = errors.New("redis: disabled")

const pingTimeout = 5 * time.Second

// Config contains Redis connection options.
type Config struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// Client wraps a go-redis client.
type Client struct {
	*goredis.Client
}

// Connect creates a client and verifies it with PING.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	rc := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := rc.Ping(pingCtx).Result(); err != nil {
		rc.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return &Client{Client: rc}, nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
