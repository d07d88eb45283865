package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := Connect(ctx, Config{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), Config{Addr: addr, MaxRetries: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(Config{Addr: "localhost:6379", DB: 99})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis config")
}

func TestMetricsHook_RecordsCommands(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(ctx)

	metrics := NewMetrics()
	require.NoError(t, metrics.RegisterMetrics(provider.Meter("test")))
	require.NoError(t, metrics.RegisterMetrics(provider.Meter("test")))
	assert.True(t, metrics.IsRegistered())
	assert.Equal(t, "redis", metrics.MetricsName())

	client, err := NewClient(Config{Addr: mr.Addr()}, NewMetricsHook(metrics, "ratelimit"))
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(ctx, "a", "1", 0).Err())
	// missing key replies nil, which is not counted as an error
	_ = client.Get(ctx, "missing").Err()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	assert.GreaterOrEqual(t, sumCounter(rm, "redis_commands_total"), int64(2))
	assert.Equal(t, int64(0), sumCounter(rm, "redis_errors_total"))
}

func TestMetrics_UnregisteredIsNoop(t *testing.T) {
	m := NewMetrics()
	assert.NotPanics(t, func() {
		m.RecordCommand(context.Background(), "x", "get", 0, nil)
	})
}

func sumCounter(rm metricdata.ResourceMetrics, name string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", errorKind(nil))
	assert.Equal(t, "", errorKind(goredis.Nil))
	assert.Equal(t, "timeout", errorKind(context.DeadlineExceeded))
	assert.Equal(t, "closed", errorKind(goredis.ErrClosed))
	assert.Equal(t, "other", errorKind(errors.New("ERR wrong type")))
}

func TestMetricsHook_DialFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	ctx := context.Background()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(ctx)

	metrics := NewMetrics()
	require.NoError(t, metrics.RegisterMetrics(provider.Meter("test")))

	client, err := NewClient(Config{Addr: addr, MaxRetries: -1}, NewMetricsHook(metrics, "ratelimit"))
	require.NoError(t, err)
	defer client.Close()

	require.Error(t, client.Get(ctx, "k").Err())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	assert.GreaterOrEqual(t, sumCounter(rm, "redis_errors_total"), int64(1))
}
