package redis

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics latency and failures of the commands the limiter store sends
type Metrics struct {
	once  sync.Once
	err   error
	ready atomic.Bool

	commands metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// MetricsName group name, "redis"
func (m *Metrics) MetricsName() string {
	return "redis"
}

// RegisterMetrics builds the instruments once; later calls return the first result
func (m *Metrics) RegisterMetrics(meter metric.Meter) error {
	m.once.Do(func() {
		var errs [3]error
		m.commands, errs[0] = meter.Int64Counter("redis_commands_total",
			metric.WithDescription("Redis commands sent by the limiter store"),
			metric.WithUnit("{command}"))
		m.failures, errs[1] = meter.Int64Counter("redis_errors_total",
			metric.WithDescription("Redis commands that failed, by error kind"),
			metric.WithUnit("{error}"))
		m.latency, errs[2] = meter.Float64Histogram("redis_command_duration_seconds",
			metric.WithDescription("Redis command round trip"),
			metric.WithUnit("s"))
		m.err = errors.Join(errs[:]...)
		m.ready.Store(m.err == nil)
	})
	return m.err
}

// IsRegistered instruments exist and record
func (m *Metrics) IsRegistered() bool {
	return m.ready.Load()
}

// RecordCommand a nil reply (missing key) counts as success
func (m *Metrics) RecordCommand(ctx context.Context, instance, command string, elapsed time.Duration, err error) {
	if !m.ready.Load() {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("instance", instance),
		attribute.String("command", command),
	}
	m.commands.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.latency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))

	if kind := errorKind(err); kind != "" {
		m.failures.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("kind", kind))...))
	}
}

// errorKind "" for success and redis.Nil, otherwise timeout, closed or other
func errorKind(err error) string {
	if err == nil || errors.Is(err, redis.Nil) {
		return ""
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.Is(err, redis.ErrClosed), errors.Is(err, net.ErrClosed):
		return "closed"
	default:
		return "other"
	}
}
