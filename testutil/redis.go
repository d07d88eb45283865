package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// NewRedis starts an in-process redis and a client for it; both are closed on cleanup
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// NewDownRedis a client whose server has already gone away
func NewDownRedis(t testing.TB) *redis.Client {
	t.Helper()
	mr, client := NewRedis(t)
	mr.Close()
	return client
}
