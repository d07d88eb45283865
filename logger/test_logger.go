package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewTestLogger in-memory logger for unit tests. Every level is recorded.
//
//	log, logs := logger.NewTestLogger("limiter")
//	l, _ := limiter.New(cfg, limiter.WithLogger(log))
//	assert.Equal(t, 1, logs.FilterMessage("request throttled").Len())
func NewTestLogger(module string) (*CtxZapLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := ManagerConfig{
		EnableTraceID:    true,
		TraceIDKey:       "trace_id",
		TraceIDFieldName: "trace_id",
	}
	return &CtxZapLogger{
		base:   zap.New(core).With(zap.String("module", module)),
		module: module,
		config: &cfg,
	}, logs
}

// NewNopLogger discards everything
func NewNopLogger() *CtxZapLogger {
	return &CtxZapLogger{base: zap.NewNop(), module: "nop"}
}
