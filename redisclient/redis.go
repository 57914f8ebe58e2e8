package redisclient

import (
    "context"
    "fmt"
    "time"

    "github.com/quietridge/copilot-core/config"
    "github.com/redis/go-redis/v9"
)

type Client struct {
    c *redis.Client
}

// New creates a Redis client from the provided config. Returns an error
// if the Redis URL cannot be parsed.
func New(cfg *config.Config) (*Client, error) {
    opt, err := redis.ParseURL(cfg.RedisURL)
    if err != nil {
        return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
    }
    r := redis.NewClient(opt)
    return &Client{c: r}, nil
}

func (r *Client) Ping() error {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    return r.c.Ping(ctx).Err()
}

// Get fetches key, reporting (value, false, nil) on a cache miss rather
// than an error.
func (r *Client) Get(ctx context.Context, key string) (string, bool, error) {
    v, err := r.c.Get(ctx, key).Result()
    if err == redis.Nil {
        return "", false, nil
    }
    if err != nil {
        return "", false, err
    }
    return v, true, nil
}

// SetEx stores value under key with a TTL given in milliseconds.
func (r *Client) SetEx(ctx context.Context, key, value string, ttlMs int64) error {
    return r.c.Set(ctx, key, value, time.Duration(ttlMs)*time.Millisecond).Err()
}
