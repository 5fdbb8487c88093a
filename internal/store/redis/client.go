// Package redis wraps the shared redis client used for distributed locks,
// durable queues, pending-refresh lists and batch-notification streams.
package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client owns the underlying connection pool and remembers the tokens of
// locks it currently holds.
type Client struct {
	rdb *redis.Client

	mu         sync.Mutex
	lockTokens map[string]string
}

func NewClient(url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{rdb: rdb, lockTokens: make(map[string]string)}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Redis() *redis.Client {
	return c.rdb
}
