package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redsync/redsync/v4"
	redsync_redis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

var ErrNotConfigured = errors.New("REDIS_URL not defined")

// Client bundles the connection with a redsync factory so every shared lock
// uses the same pool.
type Client struct {
	Client *redis.Client
	Lock   *redsync.Redsync
}

// NewClient accepts either a bare host:port or a redis:// URL.
func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	if redisURL == "" {
		return nil, ErrNotConfigured
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		opts = &redis.Options{Addr: redisURL}
	}
	opts.PoolSize = 20
	opts.MinIdleConns = 5

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	pool := redsync_redis.NewPool(client)
	return &Client{
		Client: client,
		Lock:   redsync.New(pool),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
