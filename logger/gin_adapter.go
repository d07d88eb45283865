package logger

import (
	"strings"
)

// GinLogWriter io.Writer that turns gin's text output into structured entries
type GinLogWriter struct {
	log *CtxZapLogger
}

// NewGinLogWriter writes to the given module, e.g. "gin"
func NewGinLogWriter(module string) *GinLogWriter {
	return &GinLogWriter{log: GetLogger(module)}
}

// Write implements io.Writer
func (w *GinLogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}

	switch {
	case strings.Contains(msg, "[GIN-debug]"):
		w.log.Debug(msg)
	case strings.Contains(msg, "[Recovery]"), strings.Contains(msg, "panic recovered"):
		w.log.Error(msg)
	default:
		w.log.Info(msg)
	}
	return len(p), nil
}
