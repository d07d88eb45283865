package limiter

import (
	"context"
	"errors"
	"fmt"

	"github.com/KOMKZ/go-yogan-ratelimit/breaker"
	"github.com/KOMKZ/go-yogan-ratelimit/health"
)

const healthProbeKey = "__health__"

// pinger stores with a liveness probe cheaper than a read
type pinger interface {
	Ping(ctx context.Context) error
}

// probe pings when the store can, otherwise reads a key that never exists
func probe(ctx context.Context, store Store) error {
	if p, ok := store.(pinger); ok {
		return p.Ping(ctx)
	}
	_, err := store.Get(ctx, healthProbeKey)
	if errors.Is(err, ErrKeyNotFound) {
		return nil
	}
	return err
}

// HealthChecker probes the limiter's store
type HealthChecker struct {
	store Store
}

// NewHealthChecker checks store
func NewHealthChecker(store Store) *HealthChecker {
	return &HealthChecker{store: store}
}

// Name check item name
func (h *HealthChecker) Name() string {
	return "ratelimit_store"
}

// Check behind a breaker, a half-open circuit reports degraded and an
// open one fails without touching the store.
func (h *HealthChecker) Check(ctx context.Context) error {
	if err := probe(ctx, h.store); err != nil {
		return fmt.Errorf("ratelimit store: %w", err)
	}
	if bs, ok := h.store.(*BreakerStore); ok && bs.State() == breaker.StateHalfOpen {
		return fmt.Errorf("ratelimit store: %w: circuit half open", health.ErrDegraded)
	}
	return nil
}
