package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-ratelimit/breaker"
)

// BreakerStore fails fast while the wrapped store is known to be down.
// Only ErrStoreUnavailable errors count as failures; a rejected call
// returns an error wrapping both ErrStoreUnavailable and breaker.ErrCircuitOpen.
type BreakerStore struct {
	inner Store
	cb    *breaker.Breaker
}

// NewBreakerStore wraps inner with cb
func NewBreakerStore(inner Store, cb *breaker.Breaker) *BreakerStore {
	return &BreakerStore{inner: inner, cb: cb}
}

// newStoreBreaker circuit for a store; failures are store connectivity errors only
func newStoreBreaker(cfg breaker.Config, o *options) (*breaker.Breaker, error) {
	return breaker.New("ratelimit_store", cfg,
		breaker.WithClock(o.clock),
		breaker.WithLogger(o.logger),
		breaker.WithFailurePredicate(IsStoreUnavailable),
	)
}

func (s *BreakerStore) execute(ctx context.Context, fn func(ctx context.Context) error) error {
	err := s.cb.Execute(ctx, fn)
	if errors.Is(err, breaker.ErrCircuitOpen) || errors.Is(err, breaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

func (s *BreakerStore) Get(ctx context.Context, key string) (value string, err error) {
	err = s.execute(ctx, func(ctx context.Context) error {
		value, err = s.inner.Get(ctx, key)
		return err
	})
	return value, err
}

func (s *BreakerStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return s.execute(ctx, func(ctx context.Context) error {
		return s.inner.Set(ctx, key, value, ttl)
	})
}

func (s *BreakerStore) Incr(ctx context.Context, key string) (n int64, err error) {
	err = s.execute(ctx, func(ctx context.Context) error {
		n, err = s.inner.Incr(ctx, key)
		return err
	})
	return n, err
}

func (s *BreakerStore) Expire(ctx context.Context, key string, ttl time.Duration) (ok bool, err error) {
	err = s.execute(ctx, func(ctx context.Context) error {
		ok, err = s.inner.Expire(ctx, key, ttl)
		return err
	})
	return ok, err
}

func (s *BreakerStore) Del(ctx context.Context, keys ...string) (n int64, err error) {
	err = s.execute(ctx, func(ctx context.Context) error {
		n, err = s.inner.Del(ctx, keys...)
		return err
	})
	return n, err
}

func (s *BreakerStore) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (res interface{}, err error) {
	err = s.execute(ctx, func(ctx context.Context) error {
		res, err = s.inner.Eval(ctx, script, keys, args...)
		return err
	})
	return res, err
}

// Ping probes the wrapped store through the circuit
func (s *BreakerStore) Ping(ctx context.Context) error {
	return s.execute(ctx, func(ctx context.Context) error {
		return probe(ctx, s.inner)
	})
}

// Close closes the wrapped store
func (s *BreakerStore) Close() error {
	return s.inner.Close()
}

// State current circuit state
func (s *BreakerStore) State() breaker.State {
	return s.cb.State()
}

// Breaker the circuit guarding the store
func (s *BreakerStore) Breaker() *breaker.Breaker {
	return s.cb
}
