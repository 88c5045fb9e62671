// Package store provides the key-value session store backing the
// orchestration engine: one serialized session document per conversation
// plus short-lived idempotency markers, all with TTLs.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Driver names for Config.Driver.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// KV is the store contract the engine depends on. No multi-key transactions,
// pub/sub or streams; three atomic operations and a lifecycle hook.
type KV interface {
	// Get returns the value at key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// SetEx writes value at key with a time-to-live.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Close releases the underlying client.
	Close() error
}

// Config selects and tunes a store driver.
type Config struct {
	Driver string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// OpTimeout bounds a single store operation. Zero means the driver
	// default.
	OpTimeout time.Duration
}

// New builds the store for the configured driver.
func New(cfg Config) (KV, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverRedis:
		return NewRedis(cfg), nil
	default:
		return nil, errors.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// Error wraps a failed store operation. Store faults are transient from the
// engine's point of view; jobs retry them with backoff.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the operation may be retried.
func (e *Error) IsRetryable() bool {
	return true
}
