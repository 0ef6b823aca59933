// Package redis opens go-redis clients for the service.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultPoolSize    = 10
)

type Option func(*redis.Options)

func WithPassword(password string) Option {
	return func(o *redis.Options) {
		o.Password = password
	}
}

func WithDB(db int) Option {
	return func(o *redis.Options) {
		o.DB = db
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) {
		if d > 0 {
			o.DialTimeout = d
		}
	}
}

func WithPoolSize(n int) Option {
	return func(o *redis.Options) {
		if n > 0 {
			o.PoolSize = n
		}
	}
}

// NewOptions returns client options for addr. Command deadlines follow the
// caller's context instead of the client-wide read and write timeouts.
func NewOptions(addr string, opts ...Option) *redis.Options {
	o := &redis.Options{
		Addr:                  addr,
		DialTimeout:           defaultDialTimeout,
		PoolSize:              defaultPoolSize,
		ContextTimeoutEnabled: true,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// New creates a client for addr and checks the connection with PING.
func New(ctx context.Context, addr string, opts ...Option) (*redis.Client, error) {
	const op = "redis.New"

	o := NewOptions(addr, opts...)
	client := redis.NewClient(o)

	ctx, cancel := context.WithTimeout(ctx, o.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}

	return client, nil
}
