package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultOpTimeout bounds a single Redis operation so a stalled store turns
// into a retryable job failure instead of a hung worker.
const defaultOpTimeout = 2 * time.Second

// Redis is the production store driver.
type Redis struct {
	client    *redis.Client
	opTimeout time.Duration
}

var _ KV = (*Redis)(nil)

// NewRedis builds a Redis-backed store. The connection is established lazily
// on first use.
func NewRedis(cfg Config) *Redis {
	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &Redis{client: client, opTimeout: opTimeout}
}

func (r *Redis) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &Error{Op: "get", Key: key, Err: err}
	}
	return val, true, nil
}

func (r *Redis) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return &Error{Op: "setex", Key: key, Err: err}
	}
	return nil
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, &Error{Op: "exists", Key: key, Err: err}
	}
	return n > 0, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
