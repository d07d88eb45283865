package limiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGet(t *testing.T) {
	store := newTestMemoryStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "key1", "value1", 0))

	val, err := store.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, "value1", val)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStore_TTL(t *testing.T) {
	clock := newFakeClock(windowStart)
	store := newTestMemoryStore(t, clock)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "key_ttl", "v", time.Second))
	clock.Advance(999 * time.Millisecond)
	_, err := store.Get(ctx, "key_ttl")
	require.NoError(t, err)

	clock.Advance(time.Millisecond)
	_, err = store.Get(ctx, "key_ttl")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStore_SetWithoutTTLClearsExpiry(t *testing.T) {
	clock := newFakeClock(windowStart)
	store := newTestMemoryStore(t, clock)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "1", time.Second))
	require.NoError(t, store.Set(ctx, "k", "2", 0))
	clock.Advance(time.Hour)

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "2", val)
}

func TestMemoryStore_Incr(t *testing.T) {
	clock := newFakeClock(windowStart)
	store := newTestMemoryStore(t, clock)
	ctx := context.Background()

	n, err := store.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	t.Run("keeps ttl", func(t *testing.T) {
		ok, err := store.Expire(ctx, "counter", time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		_, err = store.Incr(ctx, "counter")
		require.NoError(t, err)
		clock.Advance(time.Second)

		_, err = store.Get(ctx, "counter")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("malformed value restarts", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "bad", "abc", 0))
		n, err := store.Incr(ctx, "bad")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestMemoryStore_ConcurrentIncr(t *testing.T) {
	store := newTestMemoryStore(t, nil)
	ctx := context.Background()

	const workers = 50
	const perWorker = 20

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := store.Incr(ctx, "shared")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	val, err := store.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, "1000", val)
}

func TestMemoryStore_Expire(t *testing.T) {
	store := newTestMemoryStore(t, nil)
	ctx := context.Background()

	ok, err := store.Expire(ctx, "missing", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", "v", 0))
	ok, err = store.Expire(ctx, "k", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStore_Del(t *testing.T) {
	store := newTestMemoryStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", "1", 0))
	require.NoError(t, store.Set(ctx, "b", "2", 0))

	n, err := store.Del(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_EvalUnsupported(t *testing.T) {
	store := newTestMemoryStore(t, nil)

	_, err := store.Eval(context.Background(), "return 1", nil)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
}

func TestMemoryStore_Sweep(t *testing.T) {
	clock := newFakeClock(windowStart)
	store := newTestMemoryStore(t, clock)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", "v", time.Second))
	require.NoError(t, store.Set(ctx, "long", "v", time.Hour))
	clock.Advance(2 * time.Second)

	assert.Eventually(t, func() bool {
		return store.Len() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_Closed(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	ctx := context.Background()
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.True(t, IsStoreUnavailable(err))

	_, err = store.Incr(ctx, "k")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Set(ctx, "k", "v", 0), ErrStoreClosed)
}
