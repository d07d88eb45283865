// Package telemetry OpenTelemetry tracer and meter providers for the service
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Manager owns the SDK providers. When disabled every accessor falls back
// to the global (no-op) providers, so callers never branch on it.
//
//	m := telemetry.NewManager(cfg, log)
//	if err := m.Start(ctx); err != nil { ... }
//	defer m.Shutdown(ctx)
//	_ = m.Registry().Register(limiter.NewOTelMetrics())
type Manager struct {
	config         Config
	logger         *logger.CtxZapLogger
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	registry       *MetricsRegistry
	mu             sync.RWMutex
}

// NewManager nil log means the "yogan" module logger
func NewManager(config Config, log *logger.CtxZapLogger) *Manager {
	if log == nil {
		log = logger.GetLogger("yogan")
	}
	return &Manager{
		config: config,
		logger: log,
	}
}

// Start builds the providers and installs them globally
func (m *Manager) Start(ctx context.Context) error {
	if err := m.config.Validate(); err != nil {
		return fmt.Errorf("validate telemetry config failed: %w", err)
	}
	if !m.config.Enabled {
		m.logger.InfoCtx(ctx, "telemetry disabled")
		return nil
	}

	res, err := m.createResource(ctx)
	if err != nil {
		return fmt.Errorf("create resource failed: %w", err)
	}

	tp, err := m.createTracerProvider(ctx, res)
	if err != nil {
		return err
	}

	var mp *sdkmetric.MeterProvider
	if m.config.Metrics.Enabled {
		if mp, err = m.createMeterProvider(ctx, res); err != nil {
			_ = tp.Shutdown(ctx)
			return err
		}
		otel.SetMeterProvider(mp)
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	m.mu.Lock()
	m.tracerProvider = tp
	m.meterProvider = mp
	m.registry = nil
	m.mu.Unlock()

	m.logger.InfoCtx(ctx, "telemetry started",
		zap.String("service_name", m.config.ServiceName),
		zap.String("exporter", m.config.Exporter.Type),
		zap.Bool("metrics", mp != nil),
	)
	return nil
}

// Shutdown flushes and stops both providers
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	tp, mp := m.tracerProvider, m.meterProvider
	m.tracerProvider, m.meterProvider = nil, nil
	m.mu.Unlock()

	var errs []error
	if mp != nil {
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider failed: %w", err))
		}
	}
	if tp != nil {
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Tracer from the managed provider, or the global one
func (m *Manager) Tracer(name string) otelTrace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tracerProvider == nil {
		return otel.GetTracerProvider().Tracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

// MeterProvider the managed provider, or the global one
func (m *Manager) MeterProvider() metric.MeterProvider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.meterProvider == nil {
		return otel.GetMeterProvider()
	}
	return m.meterProvider
}

// Meter shorthand for MeterProvider().Meter(name)
func (m *Manager) Meter(name string) metric.Meter {
	return m.MeterProvider().Meter(name)
}

// Registry metrics registry bound to the current meter provider
func (m *Manager) Registry() *MetricsRegistry {
	mp := m.MeterProvider()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registry == nil {
		m.registry = NewMetricsRegistry(mp,
			WithNamespace(m.config.Metrics.Namespace),
			WithLogger(m.logger))
	}
	return m.registry
}

// IsEnabled telemetry switched on
func (m *Manager) IsEnabled() bool {
	return m.config.Enabled
}

// MetricsEnabled meter provider switched on
func (m *Manager) MetricsEnabled() bool {
	return m.config.Enabled && m.config.Metrics.Enabled
}

// GetConfig configuration
func (m *Manager) GetConfig() Config {
	return m.config
}
