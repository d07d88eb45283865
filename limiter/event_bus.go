package limiter

import (
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// EventBus fans events out to listeners on a bounded goroutine pool
type EventBus struct {
	mu        sync.RWMutex
	listeners []EventListener
	pool      *ants.Pool
	closed    bool
	onPanic   func(interface{})
}

// NewEventBus creates a bus whose pool runs at most size listeners at once.
// Publish never blocks; events are dropped when the pool is saturated.
func NewEventBus(size int, onPanic func(interface{})) (*EventBus, error) {
	if size <= 0 {
		size = 100
	}
	pool, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("create event pool: %w", err)
	}
	return &EventBus{pool: pool, onPanic: onPanic}, nil
}

// Subscribe registers a listener
func (b *EventBus) Subscribe(listener EventListener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.listeners = append(b.listeners, listener)
}

// HasListeners reports whether publishing would reach anyone
func (b *EventBus) HasListeners() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners) > 0
}

// Publish delivers event to every listener. Returns false if it was dropped.
func (b *EventBus) Publish(event Event) bool {
	b.mu.RLock()
	if b.closed || len(b.listeners) == 0 {
		b.mu.RUnlock()
		return false
	}
	listeners := make([]EventListener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	err := b.pool.Submit(func() {
		for _, listener := range listeners {
			b.deliver(listener, event)
		}
	})
	return err == nil
}

// Close waits for in-flight deliveries and releases the pool
func (b *EventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	_ = b.pool.ReleaseTimeout(defaultReleaseTimeout)
}

// deliver isolates listener panics from each other
func (b *EventBus) deliver(listener EventListener, event Event) {
	defer func() {
		if r := recover(); r != nil && b.onPanic != nil {
			b.onPanic(r)
		}
	}()
	listener.OnEvent(event)
}
