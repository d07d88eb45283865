package middleware

import (
	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	TraceIDKeyDefault    = "trace_id"   // gin context key
	TraceIDHeaderDefault = "X-Trace-ID" // read from the request, echoed on the response

	maxTraceIDLen = 128
)

// TraceConfig zero fields take the defaults, except EnableResponseHeader
type TraceConfig struct {
	TraceIDKey           string
	TraceIDHeader        string
	EnableResponseHeader bool
	Generator            func() string // ids for requests that bring none; UUID v4 by default
}

// DefaultTraceConfig UUID ids, echoed in X-Trace-ID
func DefaultTraceConfig() TraceConfig {
	return TraceConfig{
		TraceIDKey:           TraceIDKeyDefault,
		TraceIDHeader:        TraceIDHeaderDefault,
		EnableResponseHeader: true,
	}
}

// TraceID gives every request an id for log correlation: the active span's
// trace id, else a well-formed client header, else a generated one. Ids not
// taken from a span are bound to the request context for CtxZapLogger.
//
//	engine.Use(middleware.TraceID(middleware.DefaultTraceConfig()))
func TraceID(cfg TraceConfig) gin.HandlerFunc {
	key := firstNonEmpty(cfg.TraceIDKey, TraceIDKeyDefault)
	header := firstNonEmpty(cfg.TraceIDHeader, TraceIDHeaderDefault)
	generate := cfg.Generator
	if generate == nil {
		generate = func() string { return uuid.NewString() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := ""
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			id = sc.TraceID().String()
		} else {
			if id = c.GetHeader(header); !validTraceID(id) {
				id = generate()
			}
			c.Request = c.Request.WithContext(logger.WithTraceID(ctx, id))
		}

		c.Set(key, id)
		if cfg.EnableResponseHeader {
			c.Header(header, id)
		}
		c.Next()
	}
}

// validTraceID non-empty, bounded, printable ASCII without spaces
func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetTraceID id stored under the default key
func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDKeyDefault)
}
