package limiter

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics exports check outcomes through OpenTelemetry
type OTelMetrics struct {
	mu         sync.RWMutex
	registered bool

	requestsTotal    metric.Int64Counter
	throttledTotal   metric.Int64Counter
	storeErrorsTotal metric.Int64Counter
	checkDuration    metric.Float64Histogram
}

// NewOTelMetrics creates an unregistered instrument set
func NewOTelMetrics() *OTelMetrics {
	return &OTelMetrics{}
}

// MetricsName returns the metrics group name
func (m *OTelMetrics) MetricsName() string {
	return "ratelimit"
}

// RegisterMetrics creates the instruments on meter
func (m *OTelMetrics) RegisterMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	var err error
	m.requestsTotal, err = meter.Int64Counter(
		"ratelimit_requests_total",
		metric.WithDescription("Total number of rate limit checks"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	m.throttledTotal, err = meter.Int64Counter(
		"ratelimit_throttled_total",
		metric.WithDescription("Total number of denied requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	m.storeErrorsTotal, err = meter.Int64Counter(
		"ratelimit_store_errors_total",
		metric.WithDescription("Total number of checks that failed on the store"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	m.checkDuration, err = meter.Float64Histogram(
		"ratelimit_check_duration_seconds",
		metric.WithDescription("Rate limit check latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	m.registered = true
	return nil
}

// IsRegistered returns whether metrics have been registered
func (m *OTelMetrics) IsRegistered() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered
}

// RecordCheck records one check outcome
func (m *OTelMetrics) RecordCheck(ctx context.Context, algorithm AlgorithmType, route string, d Decision, err error, elapsed time.Duration) {
	if !m.IsRegistered() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("algorithm", algorithm.String()),
		attribute.String("route", route),
	)
	m.requestsTotal.Add(ctx, 1, attrs)
	m.checkDuration.Record(ctx, elapsed.Seconds(), attrs)

	switch {
	case err != nil:
		if IsStoreUnavailable(err) {
			m.storeErrorsTotal.Add(ctx, 1, attrs)
		}
	case !d.Allowed:
		m.throttledTotal.Add(ctx, 1, attrs)
	}
}
