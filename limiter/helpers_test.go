package limiter

import (
	"sync"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitManager(logger.ManagerConfig{})
}

// fakeClock manually advanced time source, safe for the sweeper goroutine
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// windowStart a time aligned to a minute boundary
var windowStart = time.Unix(1_700_000_040, 0)

func newTestMemoryStore(t *testing.T, clock *fakeClock) *MemoryStore {
	t.Helper()
	opts := []MemoryOption{WithSweepInterval(10 * time.Millisecond)}
	if clock != nil {
		opts = append(opts, WithMemoryClock(clock.Now))
	}
	store, err := NewMemoryStore(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStoreWithClient(client, "limiter:")
}

// storeFactories runs algorithm tests against both backends
func storeFactories() map[string]func(t *testing.T, clock *fakeClock) Store {
	return map[string]func(t *testing.T, clock *fakeClock) Store{
		"memory": func(t *testing.T, clock *fakeClock) Store {
			return newTestMemoryStore(t, clock)
		},
		"redis": func(t *testing.T, _ *fakeClock) Store {
			_, store := setupMiniRedis(t)
			return store
		},
	}
}
