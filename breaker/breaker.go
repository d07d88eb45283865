// Package breaker circuit breaker guarding calls to a backing store.
//
// While open, calls fail fast with ErrCircuitOpen instead of waiting on a
// dead dependency; after Timeout a few probes decide whether it closes again.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"go.uber.org/zap"
)

var (
	// ErrCircuitOpen call rejected while open
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests half-open probe quota already taken
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// StateListener notified after every state change
type StateListener func(name string, from, to State)

// Breaker one circuit
type Breaker struct {
	name      string
	cfg       Config
	state     *stateManager
	metrics   *windowMetrics
	strategy  Strategy
	isFailure func(error) bool
	listeners []StateListener
	logger    *logger.CtxZapLogger
}

// Option configures a Breaker
type Option func(*options)

type options struct {
	clock     func() time.Time
	isFailure func(error) bool
	listeners []StateListener
	logger    *logger.CtxZapLogger
}

// WithClock replaces the time source
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithFailurePredicate only errors it accepts count as failures (default: any error)
func WithFailurePredicate(fn func(error) bool) Option {
	return func(o *options) { o.isFailure = fn }
}

// WithStateListener subscribes to state changes
func WithStateListener(l StateListener) Option {
	return func(o *options) { o.listeners = append(o.listeners, l) }
}

// WithLogger sets the logger (default module "yogan")
func WithLogger(l *logger.CtxZapLogger) Option {
	return func(o *options) { o.logger = l }
}

// New builds a closed breaker named name
func New(name string, cfg Config, opts ...Option) (*Breaker, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid breaker config: %w", err)
	}

	o := &options{clock: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if o.isFailure == nil {
		o.isFailure = func(err error) bool { return err != nil }
	}
	if o.logger == nil {
		o.logger = logger.GetLogger("yogan")
	}

	return &Breaker{
		name:      name,
		cfg:       cfg,
		state:     newStateManager(o.clock),
		metrics:   newWindowMetrics(cfg.WindowSize, o.clock),
		strategy:  strategyByName(cfg.Strategy),
		isFailure: o.isFailure,
		listeners: o.listeners,
		logger:    o.logger,
	}, nil
}

// Execute runs fn unless the circuit rejects it. fn's error is returned unchanged.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	ok, t := b.state.canAttempt(b.cfg)
	b.notify(ctx, t)
	if !ok {
		b.metrics.recordRejection()
		if b.state.State() == StateHalfOpen {
			return ErrTooManyRequests
		}
		return ErrCircuitOpen
	}

	err := fn(ctx)
	if err == nil || !b.isFailure(err) {
		b.metrics.recordSuccess()
		b.notify(ctx, b.state.recordSuccess(b.cfg))
		return err
	}

	b.metrics.recordFailure()
	shouldOpen := b.strategy.ShouldOpen(b.metrics.snapshot(), b.cfg)
	b.notify(ctx, b.state.recordFailure(shouldOpen))
	return err
}

// State current state; an expired open circuit reports open until the next call
func (b *Breaker) State() State {
	return b.state.State()
}

// Metrics counters of the current window
func (b *Breaker) Metrics() MetricsSnapshot {
	return b.metrics.snapshot()
}

// Reset closes the circuit and clears counters
func (b *Breaker) Reset() {
	b.metrics.reset()
	b.notify(context.Background(), b.state.reset())
}

// Name circuit name
func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) notify(ctx context.Context, t transition) {
	if !t.changed {
		return
	}
	fields := []zap.Field{
		zap.String("breaker", b.name),
		zap.String("from", t.from.String()),
		zap.String("to", t.to.String()),
		zap.String("reason", t.reason),
	}
	if t.to == StateOpen {
		b.logger.WarnCtx(ctx, "circuit opened", fields...)
	} else {
		b.logger.InfoCtx(ctx, "circuit state changed", fields...)
	}
	for _, l := range b.listeners {
		l(b.name, t.from, t.to)
	}
}
