package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestManagerConfig_ApplyDefaults(t *testing.T) {
	cfg := ManagerConfig{EnableFile: true}
	cfg.ApplyDefaults()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Encoding)
	assert.Equal(t, "logs", cfg.BaseLogDir)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, "trace_id", cfg.TraceIDFieldName)
	assert.NoError(t, cfg.Validate())
}

func TestManagerConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ManagerConfig)
		errMsg string
	}{
		{"bad level", func(c *ManagerConfig) { c.Level = "loud" }, "invalid log level"},
		{"bad encoding", func(c *ManagerConfig) { c.Encoding = "xml" }, "invalid log encoding"},
		{"max size", func(c *ManagerConfig) { c.MaxSize = 0 }, "max_size"},
		{"max backups", func(c *ManagerConfig) { c.MaxBackups = -1 }, "max_backups"},
		{"max age", func(c *ManagerConfig) { c.MaxAge = 4000 }, "max_age"},
		{"stack level", func(c *ManagerConfig) { c.StacktraceLevel = "nope" }, "stacktrace level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultManagerConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("whatever"))
}

func TestManager_FileOutput(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(ManagerConfig{
		BaseLogDir:       dir,
		EnableFile:       true,
		EnableStacktrace: true,
		Level:            "debug",
	})

	log := m.GetLogger("limiter")
	assert.Same(t, log, m.GetLogger("limiter"))
	assert.Equal(t, "limiter", log.Module())

	log.Info("info entry", zap.String("k", "v"))
	log.Error("error entry")
	m.CloseAll()

	info, err := os.ReadFile(filepath.Join(dir, "limiter", "limiter-info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "info entry")
	assert.NotContains(t, string(info), "error entry")
	assert.Contains(t, string(info), `"module":"limiter"`)

	errLog, err := os.ReadFile(filepath.Join(dir, "limiter", "limiter-error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errLog), "error entry")
	assert.Contains(t, string(errLog), `"stack"`)
}

func TestManager_NoOutputsIsNop(t *testing.T) {
	m := NewManager(ManagerConfig{})
	log := m.GetLogger("quiet")
	assert.NotPanics(t, func() { log.Info("dropped") })
}

func TestCtxZapLogger_TraceID(t *testing.T) {
	log, logs := NewTestLogger("test")

	log.InfoCtx(WithTraceID(context.Background(), "req-123"), "typed key")
	log.InfoCtx(context.WithValue(context.Background(), "trace_id", "legacy-1"), "string key")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	log.InfoCtx(trace.ContextWithSpanContext(WithTraceID(context.Background(), "ignored"), spanCtx), "otel span")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "req-123", entries[0].ContextMap()["trace_id"])
	assert.Equal(t, "legacy-1", entries[1].ContextMap()["trace_id"])
	assert.Equal(t, traceID.String(), entries[2].ContextMap()["trace_id"])
	assert.Equal(t, "test", entries[0].ContextMap()["module"])
}

func TestCtxZapLogger_With(t *testing.T) {
	log, logs := NewTestLogger("test")

	child := log.With(zap.String("identity", "ip:1.2.3.4"))
	child.WarnCtx(context.Background(), "throttled")
	child.Debug("debug")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "ip:1.2.3.4", logs.All()[0].ContextMap()["identity"])
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
	assert.NotNil(t, child.GetZapLogger())
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()
	assert.NotPanics(t, func() {
		log.ErrorCtx(context.Background(), "nothing")
		log.InfoCtx(context.Background(), "nothing")
	})
}

func TestGetLogger_Global(t *testing.T) {
	InitManager(ManagerConfig{Level: "debug"})
	defer InitManager(ManagerConfig{})

	a := GetLogger("yogan")
	b := GetLogger("yogan")
	assert.Same(t, a, b)
	CloseAll()
}

func TestCaptureStacktrace(t *testing.T) {
	stack := CaptureStacktrace(1, 2)
	assert.Contains(t, stack, "TestCaptureStacktrace")

	assert.True(t, shouldCaptureStacktrace("error", DefaultManagerConfig()))
	assert.False(t, shouldCaptureStacktrace("info", DefaultManagerConfig()))
}

func TestGinLogWriter(t *testing.T) {
	InitManager(ManagerConfig{})
	w := NewGinLogWriter("gin")

	n, err := w.Write([]byte("[GIN-debug] GET /ping\n"))
	require.NoError(t, err)
	assert.Equal(t, 22, n)

	n, err = w.Write([]byte("   "))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
