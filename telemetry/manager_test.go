package telemetry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-ratelimit/limiter"
	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stdoutConfig(buf *bytes.Buffer) Config {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.ServiceName = "ratelimit-test"
	cfg.Exporter.Type = "stdout"
	cfg.Exporter.Writer = buf
	cfg.Batch.Enabled = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.ExportInterval = time.Hour
	return cfg
}

func TestManager_Disabled(t *testing.T) {
	m := NewManager(DefaultConfig(), logger.NewNopLogger())
	require.NoError(t, m.Start(context.Background()))

	assert.False(t, m.IsEnabled())
	assert.False(t, m.MetricsEnabled())
	assert.Nil(t, m.tracerProvider)
	assert.NotNil(t, m.Tracer("x"))
	assert.NotNil(t, m.Meter("x"))
	require.NoError(t, m.Registry().Register(limiter.NewOTelMetrics()))
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Exporter.Type = "zipkin"

	err := NewManager(cfg, nil).Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate telemetry config failed")
}

func TestManager_StdoutExport(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(stdoutConfig(&buf), logger.NewNopLogger())
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	assert.True(t, m.MetricsEnabled())

	_, span := m.Tracer("test").Start(ctx, "ratelimit.check")
	span.End()

	metrics := limiter.NewOTelMetrics()
	require.NoError(t, m.Registry().Register(metrics))
	metrics.RecordCheck(ctx, limiter.AlgorithmTokenBucket, "/api",
		limiter.Decision{Allowed: false}, nil, time.Millisecond)

	require.NoError(t, m.Shutdown(ctx))

	out := buf.String()
	assert.Contains(t, out, "ratelimit.check")
	assert.Contains(t, out, "ratelimit-test")
	assert.Contains(t, out, "ratelimit_throttled_total")
	assert.Contains(t, out, "yogan_ratelimit")

	// second shutdown is a no-op
	assert.NoError(t, m.Shutdown(ctx))
}
