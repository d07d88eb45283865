package telemetry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// MetricsProvider a group of instruments created on one meter, such as the
// limiter's decision counters or the redis command histogram
type MetricsProvider interface {
	MetricsName() string
	RegisterMetrics(meter metric.Meter) error
}

// MetricsRegistry gives each instrument group a meter scoped "<namespace>_<group>"
type MetricsRegistry struct {
	mp        metric.MeterProvider
	namespace string
	log       *logger.CtxZapLogger

	mu     sync.Mutex
	meters map[string]metric.Meter
	names  []string // registered groups, in order
}

type MetricsRegistryOption func(*MetricsRegistry)

// WithNamespace scope prefix, "yogan" by default; "" disables the prefix
func WithNamespace(namespace string) MetricsRegistryOption {
	return func(r *MetricsRegistry) { r.namespace = namespace }
}

func WithLogger(l *logger.CtxZapLogger) MetricsRegistryOption {
	return func(r *MetricsRegistry) { r.log = l }
}

// NewMetricsRegistry registry over mp, or over the global provider when mp is nil
func NewMetricsRegistry(mp metric.MeterProvider, opts ...MetricsRegistryOption) *MetricsRegistry {
	r := &MetricsRegistry{
		mp:        mp,
		namespace: "yogan",
		meters:    make(map[string]metric.Meter),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.mp == nil {
		r.mp = otel.GetMeterProvider()
	}
	if r.log == nil {
		r.log = logger.GetLogger("yogan")
	}
	return r
}

// Register creates the group's instruments. Each group name registers once;
// a group whose instruments fail to build is not recorded.
func (r *MetricsRegistry) Register(p MetricsProvider) error {
	if p == nil {
		return errors.New("telemetry: nil metrics provider")
	}
	name := p.MetricsName()
	if name == "" {
		return errors.New("telemetry: metrics provider without a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.names {
		if n == name {
			return fmt.Errorf("telemetry: metrics %q already registered", name)
		}
	}
	if err := p.RegisterMetrics(r.meter(name)); err != nil {
		return fmt.Errorf("telemetry: register %q metrics: %w", name, err)
	}
	r.names = append(r.names, name)
	r.log.Debug("metrics registered", zap.String("group", name))
	return nil
}

// GetMeter the scoped meter for a group, created on first use
func (r *MetricsRegistry) GetMeter(name string) metric.Meter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meter(name)
}

// meter requires r.mu
func (r *MetricsRegistry) meter(name string) metric.Meter {
	if m, ok := r.meters[name]; ok {
		return m
	}
	scope := name
	if r.namespace != "" {
		scope = r.namespace + "_" + name
	}
	m := r.mp.Meter(scope)
	r.meters[name] = m
	return m
}

// ProviderNames registered group names, in registration order
func (r *MetricsRegistry) ProviderNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}
