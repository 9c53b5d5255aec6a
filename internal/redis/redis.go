package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moodmate/internal/config"

	redis "github.com/redis/go-redis/v9"
)

// Client wraps go-redis client to centralize configuration.
type Client struct {
	inner *redis.Client
}

// ErrCacheMiss mirrors redis.Nil for callers.
var ErrCacheMiss = redis.Nil

// NewRedisClient creates the redis client from app config.
func NewRedisClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	host := cfg.Redis.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Redis.Port
	if port == 0 {
		port = 6379
	}

	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Client{inner: client}, nil
}

// Del removes provided keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c == nil || c.inner == nil {
		return errors.New("redis client not initialized")
	}
	if len(keys) == 0 {
		return nil
	}
	return c.inner.Del(ctx, keys...).Err()
}

// RPush appends values to the tail of a list key.
func (c *Client) RPush(ctx context.Context, key string, values ...interface{}) error {
	if c == nil || c.inner == nil {
		return errors.New("redis client not initialized")
	}
	return c.inner.RPush(ctx, key, values...).Err()
}

// LRange returns list elements between start and stop, inclusive.
func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if c == nil || c.inner == nil {
		return nil, errors.New("redis client not initialized")
	}
	return c.inner.LRange(ctx, key, start, stop).Result()
}

// Close closes client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
