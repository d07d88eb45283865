package middleware

import (
	"time"

	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogConfig access log configuration
type RequestLogConfig struct {
	// SkipPaths paths that are not logged, e.g. probes
	SkipPaths []string

	// Logger destination (default module "yogan")
	Logger *logger.CtxZapLogger
}

// DefaultRequestLogConfig logs every path
func DefaultRequestLogConfig() RequestLogConfig {
	return RequestLogConfig{SkipPaths: []string{}}
}

// RequestLog structured access log with default settings
func RequestLog() gin.HandlerFunc {
	return RequestLogWithConfig(DefaultRequestLogConfig())
}

// RequestLogWithConfig structured access log. Level follows the status:
// 5xx error, 4xx warn, otherwise info. Requests the limiter decided carry
// the identity and remaining quota.
func RequestLogWithConfig(cfg RequestLogConfig) gin.HandlerFunc {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		log := cfg.Logger
		if log == nil {
			log = logger.GetLogger("yogan")
		}

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("body_size", c.Writer.Size()),
		}
		if d, ok := GetDecision(c); ok {
			fields = append(fields,
				zap.String("identity", d.Identity),
				zap.Bool("allowed", d.Allowed),
				zap.Int64("remaining", d.Remaining),
			)
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			fields = append(fields, zap.String("error", msg))
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			log.ErrorCtx(ctx, "http request", fields...)
		case status >= 400:
			log.WarnCtx(ctx, "http request", fields...)
		default:
			log.InfoCtx(ctx, "http request", fields...)
		}
	}
}
