package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-ratelimit/breaker"
	"github.com/KOMKZ/go-yogan-ratelimit/health"
	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker(t *testing.T) {
	mr, store := setupMiniRedis(t)
	checker := NewHealthChecker(store)
	assert.Equal(t, "ratelimit_store", checker.Name())
	assert.NoError(t, checker.Check(context.Background()))

	mr.Close()
	err := checker.Check(context.Background())
	require.Error(t, err)
	assert.True(t, IsStoreUnavailable(err))
}

func TestHealthChecker_ClosedMemoryStore(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.ErrorIs(t, NewHealthChecker(store).Check(context.Background()), ErrStoreClosed)
}

func TestHealthChecker_BreakerStates(t *testing.T) {
	clock := newFakeClock(windowStart)
	inner := &flakyStore{MemoryStore: newTestMemoryStore(t, clock), err: ErrStoreUnavailable}
	cb, err := breaker.New("health_store", breaker.Config{ConsecutiveFailures: 1, Timeout: time.Second, HalfOpenRequests: 2},
		breaker.WithClock(clock.Now), breaker.WithLogger(logger.NewNopLogger()),
		breaker.WithFailurePredicate(IsStoreUnavailable))
	require.NoError(t, err)
	checker := NewHealthChecker(NewBreakerStore(inner, cb))
	ctx := context.Background()

	require.Error(t, checker.Check(ctx))
	err = checker.Check(ctx)
	assert.ErrorIs(t, err, breaker.ErrCircuitOpen)
	assert.NotErrorIs(t, err, health.ErrDegraded)

	inner.err = nil
	clock.Advance(time.Second)
	assert.ErrorIs(t, checker.Check(ctx), health.ErrDegraded)
	assert.NoError(t, checker.Check(ctx))
}
