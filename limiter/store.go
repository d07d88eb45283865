package limiter

import (
	"context"
	"time"
)

// Store key-value storage with expiry used by the algorithms.
//
// All methods must be safe for concurrent use. Incr is the only operation
// whose atomicity the algorithms depend on.
type Store interface {
	// Get returns the value or ErrKeyNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set overwrites the value. ttl <= 0 clears any previous expiry.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Incr atomically increments an integer value, starting from 0 when absent
	Incr(ctx context.Context, key string) (int64, error)

	// Expire refreshes the TTL of an existing key, false when absent
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Del removes keys and returns how many existed
	Del(ctx context.Context, keys ...string) (int64, error)

	// Eval runs a Lua script atomically (ErrUnsupportedOperation if not supported)
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)

	// Close releases resources held by the store
	Close() error
}

// StoreType storage backend name
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// Clock time source, replaceable in tests
type Clock func() time.Time
