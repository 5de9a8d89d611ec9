// Package cache provides a JSON read-through cache for immutable ledger data.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON-encoded values by key.
type Cache interface {
	// Get decodes the value at key into result and reports whether it was found.
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Options configures the Redis connection.
type Options struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	Timeout     time.Duration
}

// Redis is a Cache backed by a Redis server.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts Options) (*Redis, error) {
	const op = "cache.new_redis"

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Redis{client: client}, nil
}

func (c *Redis) Get(ctx context.Context, key string, result any) (bool, error) {
	const op = "cache.get"

	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(val, result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

func (c *Redis) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	const op = "cache.set"

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.client.Set(ctx, key, data, expiration).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Redis) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Ping checks the Redis connection.
func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *Redis) Close() error {
	return c.client.Close()
}

// Noop is a Cache that never stores anything. It is used when no Redis
// address is configured.
type Noop struct{}

func (Noop) Get(ctx context.Context, key string, result any) (bool, error) { return false, nil }

func (Noop) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return nil
}

func (Noop) Invalidate(ctx context.Context, key string) error { return nil }
