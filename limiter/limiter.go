package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	rediscomp "github.com/KOMKZ/go-yogan-ratelimit/redis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultReleaseTimeout = 3 * time.Second

// Limiter resolves identity and policy for a request and runs the configured algorithm
type Limiter struct {
	cfg    Config
	store  Store
	owns   bool
	now    Clock
	logger *logger.CtxZapLogger

	tokenBucket   *TokenBucket
	slidingWindow *SlidingWindow

	metrics *Metrics
	otel    *OTelMetrics
	events  *EventBus
}

// Option configures a Limiter
type Option func(*options)

type options struct {
	logger      *logger.CtxZapLogger
	store       Store
	clock       Clock
	otel        *OTelMetrics
	redisClient redis.UniversalClient
	redisHooks  []redis.Hook
	listeners   []EventListener
}

// WithLogger sets the logger (default module "yogan")
func WithLogger(l *logger.CtxZapLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithStore uses store instead of building one from config. The caller keeps ownership.
func WithStore(store Store) Option {
	return func(o *options) { o.store = store }
}

// WithClock replaces the time source
func WithClock(clock Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithOTelMetrics records checks on registered OTel instruments
func WithOTelMetrics(m *OTelMetrics) Option {
	return func(o *options) { o.otel = m }
}

// WithRedisClient backs the redis storage type with an existing client
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) { o.redisClient = client }
}

// WithRedisHooks adds hooks to the client the limiter dials itself
func WithRedisHooks(hooks ...redis.Hook) Option {
	return func(o *options) { o.redisHooks = append(o.redisHooks, hooks...) }
}

// WithListener subscribes listener to limiter events
func WithListener(listener EventListener) Option {
	return func(o *options) { o.listeners = append(o.listeners, listener) }
}

// New validates cfg, builds the store and returns a ready limiter
func New(cfg Config, opts ...Option) (*Limiter, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.GetLogger("yogan")
	}
	if o.clock == nil {
		o.clock = time.Now
	}

	cfg = cfg.clone()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid limiter config: %w", err)
	}

	l := &Limiter{
		cfg:     cfg,
		now:     o.clock,
		logger:  o.logger,
		metrics: NewMetrics(),
		otel:    o.otel,
	}

	if o.store != nil {
		l.store = o.store
	} else {
		store, err := buildStore(cfg.Storage, o)
		if err != nil {
			return nil, err
		}
		l.store = store
		l.owns = true
	}
	if cfg.Storage.Breaker.Enabled {
		cb, err := newStoreBreaker(cfg.Storage.Breaker, o)
		if err != nil {
			if l.owns {
				_ = l.store.Close()
			}
			return nil, err
		}
		l.store = NewBreakerStore(l.store, cb)
	}

	l.tokenBucket = NewTokenBucket(l.store, l.now)
	l.slidingWindow = NewSlidingWindow(l.store, l.now)

	events, err := NewEventBus(cfg.EventPoolSize, func(r interface{}) {
		l.logger.Error("limiter event listener panic", zap.Any("panic", r))
	})
	if err != nil {
		if l.owns {
			_ = l.store.Close()
		}
		return nil, err
	}
	l.events = events
	for _, listener := range o.listeners {
		l.events.Subscribe(listener)
	}

	l.logger.Debug("rate limiter ready", zap.Stringer("config", cfg))
	return l, nil
}

func buildStore(cfg StorageConfig, o *options) (Store, error) {
	switch cfg.Type {
	case StoreTypeMemory:
		return NewMemoryStore(
			WithSweepInterval(cfg.Options.SweepInterval),
			WithMemoryClock(o.clock),
		)
	case StoreTypeRedis:
		if o.redisClient != nil {
			return NewRedisStoreWithClient(o.redisClient, cfg.Options.KeyPrefix), nil
		}
		redisCfg := rediscomp.Config{
			Host:     cfg.Options.Host,
			Port:     cfg.Options.Port,
			Password: cfg.Options.Password,
			DB:       cfg.Options.DB,
		}
		hooks := o.redisHooks
		dial := func(ctx context.Context) (redis.UniversalClient, error) {
			return rediscomp.NewClient(redisCfg, hooks...)
		}
		return NewRedisStore(dial, cfg.Options.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// clone copies the override map so defaults never leak into the caller's config
func (c Config) clone() Config {
	if c.EndpointOverrides != nil {
		overrides := make(map[string]Policy, len(c.EndpointOverrides))
		for route, p := range c.EndpointOverrides {
			overrides[route] = p
		}
		c.EndpointOverrides = overrides
	}
	return c
}

// Check counts the request, resolves identity and policy and runs the algorithm.
// Store failures are returned as errors, never as a deny.
func (l *Limiter) Check(ctx context.Context, req RequestDescriptor) (Decision, error) {
	start := time.Now()
	l.metrics.recordRequest()

	identity := ResolveIdentity(req, l.cfg.ClientIdentifier)
	policy := l.PolicyFor(req.Route)

	alg, err := l.algorithm(policy)
	if err != nil {
		return Decision{Identity: identity, Policy: policy}, err
	}

	d, err := alg.Check(ctx, identity, policy)
	d.Identity = identity
	if l.otel != nil {
		l.otel.RecordCheck(ctx, policy.Algorithm, req.Route, d, err, time.Since(start))
	}

	if err != nil {
		l.logger.WarnCtx(ctx, "rate limit check failed",
			zap.String("identity", identity),
			zap.String("route", req.Route),
			zap.String("algorithm", policy.Algorithm.String()),
			zap.Error(err))
		// only connectivity failures count as store errors
		if IsStoreUnavailable(err) {
			l.metrics.recordStoreError()
			l.publish(ctx, &StoreErrorEvent{
				BaseEvent: NewBaseEvent(ctx, EventStoreError, identity, req.Route, l.now()),
				Err:       err,
			})
		}
		return d, err
	}

	eventType := EventAllowed
	if !d.Allowed {
		eventType = EventThrottled
		l.metrics.recordThrottled()
		l.logger.DebugCtx(ctx, "request throttled",
			zap.String("identity", identity),
			zap.String("route", req.Route),
			zap.Int64("limit", d.Limit),
			zap.Int64("retry_after", d.RetryAfterSeconds))
	}
	l.publish(ctx, &DecisionEvent{
		BaseEvent: NewBaseEvent(ctx, eventType, identity, req.Route, l.now()),
		Decision:  d,
	})
	return d, nil
}

// Reset restores a full quota for identity under policy.
// Racing a concurrent Check for the same identity may lose either write.
func (l *Limiter) Reset(ctx context.Context, identity string, policy Policy) error {
	policy = l.normalize(policy)
	alg, err := l.algorithm(policy)
	if err != nil {
		return err
	}
	if err := alg.Reset(ctx, identity, policy); err != nil {
		return err
	}
	l.logger.InfoCtx(ctx, "rate limit reset",
		zap.String("identity", identity),
		zap.String("algorithm", policy.Algorithm.String()))
	return nil
}

// Usage consumed quota for identity without recording a request
func (l *Limiter) Usage(ctx context.Context, identity string, policy Policy) (float64, error) {
	policy = l.normalize(policy)
	alg, err := l.algorithm(policy)
	if err != nil {
		return 0, err
	}
	return alg.Usage(ctx, identity, policy)
}

// PolicyFor effective policy for route
func (l *Limiter) PolicyFor(route string) Policy {
	return ResolvePolicy(route, l.cfg.DefaultLimits, l.cfg.EndpointOverrides)
}

// normalize a zero policy means the default; a missing algorithm means the configured one
func (l *Limiter) normalize(p Policy) Policy {
	if p == (Policy{}) {
		return l.cfg.DefaultLimits
	}
	if p.Algorithm == "" {
		p.Algorithm = l.cfg.Algorithm
	}
	if p.Interval == "" {
		p.Interval = IntervalMinute
	}
	return p
}

// algorithm closed dispatch over the supported algorithms
func (l *Limiter) algorithm(p Policy) (Algorithm, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch p.Algorithm {
	case AlgorithmTokenBucket:
		return l.tokenBucket, nil
	case AlgorithmSlidingWindow:
		return l.slidingWindow, nil
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidPolicy, p.Algorithm)
	}
}

func (l *Limiter) publish(ctx context.Context, event Event) {
	if !l.events.HasListeners() {
		return
	}
	if !l.events.Publish(event) {
		l.logger.DebugCtx(ctx, "limiter event dropped", zap.String("type", string(event.Type())))
	}
}

// Subscribe registers an event listener
func (l *Limiter) Subscribe(listener EventListener) {
	l.events.Subscribe(listener)
}

// GetMetrics snapshot of the request counters
func (l *Limiter) GetMetrics() MetricsSnapshot {
	return l.metrics.Snapshot()
}

// Config effective configuration after defaults
func (l *Limiter) Config() Config {
	return l.cfg.clone()
}

// Store backing store
func (l *Limiter) Store() Store {
	return l.store
}

// Close stops event delivery and closes the store if the limiter created it
func (l *Limiter) Close() error {
	l.events.Close()
	if !l.owns {
		return nil
	}
	if err := l.store.Close(); err != nil && !errors.Is(err, ErrStoreClosed) {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// Shutdown satisfies the do container shutdown hook
func (l *Limiter) Shutdown() error {
	return l.Close()
}
