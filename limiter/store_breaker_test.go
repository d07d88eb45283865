package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-ratelimit/breaker"
	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails every call with err while err is set
type flakyStore struct {
	*MemoryStore
	err   error
	calls int
}

func (s *flakyStore) Get(ctx context.Context, key string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.MemoryStore.Get(ctx, key)
}

func newTestBreakerStore(t *testing.T, clock *fakeClock, inner Store) *BreakerStore {
	t.Helper()
	cb, err := breaker.New("test_store", breaker.Config{ConsecutiveFailures: 2, Timeout: time.Second},
		breaker.WithClock(clock.Now),
		breaker.WithLogger(logger.NewNopLogger()),
		breaker.WithFailurePredicate(IsStoreUnavailable))
	require.NoError(t, err)
	return NewBreakerStore(inner, cb)
}

func TestBreakerStore_FailsFastWhenOpen(t *testing.T) {
	clock := newFakeClock(windowStart)
	inner := &flakyStore{MemoryStore: newTestMemoryStore(t, clock), err: ErrStoreUnavailable}
	store := newTestBreakerStore(t, clock, inner)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := store.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	}
	require.Equal(t, breaker.StateOpen, store.State())

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, breaker.ErrCircuitOpen)
	assert.True(t, IsStoreUnavailable(err))
	assert.Equal(t, 2, inner.calls, "open circuit must not reach the store")

	// recovers after the open timeout
	inner.err = nil
	clock.Advance(time.Second)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, breaker.StateClosed, store.State())
}

func TestBreakerStore_OrdinaryErrorsAreNotFailures(t *testing.T) {
	clock := newFakeClock(windowStart)
	store := newTestBreakerStore(t, clock, newTestMemoryStore(t, clock))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrKeyNotFound)
		_, err = store.Eval(ctx, "return 1", nil)
		assert.ErrorIs(t, err, ErrUnsupportedOperation)
	}
	assert.Equal(t, breaker.StateClosed, store.State())
}

func TestBreakerStore_PassesThrough(t *testing.T) {
	clock := newFakeClock(windowStart)
	store := newTestBreakerStore(t, clock, newTestMemoryStore(t, clock))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "1", time.Minute))
	n, err := store.Incr(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := store.Expire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := store.Del(ctx, "k", "other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, "test_store", store.Breaker().Name())
	require.NoError(t, store.Close())
}

func TestLimiter_BreakerConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	l, err := New(Config{Storage: StorageConfig{
		Type:    StoreTypeRedis,
		Breaker: breaker.Config{Enabled: true, ConsecutiveFailures: 1, Timeout: time.Minute},
	}}, WithLogger(logger.NewNopLogger()), WithRedisClient(client))
	require.NoError(t, err)
	defer l.Close()

	bs, ok := l.Store().(*BreakerStore)
	require.True(t, ok)
	assert.Equal(t, 1, l.Config().Storage.Breaker.HalfOpenRequests)

	ctx := context.Background()
	d, err := l.Check(ctx, RequestDescriptor{RemoteAddr: "1.2.3.4"})
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	mr.Close()
	_, err = l.Check(ctx, RequestDescriptor{RemoteAddr: "1.2.3.4"})
	require.True(t, IsStoreUnavailable(err))
	assert.Equal(t, breaker.StateOpen, bs.State())

	start := time.Now()
	_, err = l.Check(ctx, RequestDescriptor{RemoteAddr: "1.2.3.4"})
	assert.True(t, errors.Is(err, breaker.ErrCircuitOpen))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, int64(3), l.GetMetrics().RequestsTotal)
	assert.Equal(t, int64(2), l.GetMetrics().StoreErrorsTotal)
}

func TestConfig_BreakerValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Breaker = breaker.Config{Enabled: true, Strategy: "adaptive"}
	cfg.ApplyDefaults()
	assert.Error(t, cfg.Validate())

	// ignored while disabled
	cfg.Storage.Breaker.Enabled = false
	assert.NoError(t, cfg.Validate())
}
