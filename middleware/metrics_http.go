package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetrics HTTP server instruments; every request is tagged with the
// limiter outcome so throttled traffic is visible next to latency.
type HTTPMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	requestsInFlight metric.Int64UpDownCounter
	responseSize     metric.Int64Histogram
}

// NewHTTPMetrics creates the instruments on meter
func NewHTTPMetrics(meter metric.Meter, recordResponseSize bool) (*HTTPMetrics, error) {
	requestsTotal, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestsInFlight, err := meter.Int64UpDownCounter(
		"http_requests_in_flight",
		metric.WithDescription("HTTP requests being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m := &HTTPMetrics{
		requestsTotal:    requestsTotal,
		requestDuration:  requestDuration,
		requestsInFlight: requestsInFlight,
	}

	if recordResponseSize {
		m.responseSize, err = meter.Int64Histogram(
			"http_response_size_bytes",
			metric.WithDescription("HTTP response body size"),
			metric.WithUnit("By"),
		)
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Handler gin middleware; register it before RateLimiter so denials are counted
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()
		// route pattern keeps cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		m.requestsInFlight.Add(ctx, 1)
		defer m.requestsInFlight.Add(ctx, -1)

		c.Next()

		status := c.Writer.Status()
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", path),
			attribute.Int("status_code", status),
			attribute.String("status_class", statusClass(status)),
			attribute.String("ratelimit", rateLimitOutcome(c)),
		)

		m.requestsTotal.Add(ctx, 1, attrs)
		m.requestDuration.Record(ctx, time.Since(start).Seconds(), attrs)

		if m.responseSize != nil {
			if size := c.Writer.Size(); size > 0 {
				m.responseSize.Record(ctx, int64(size), metric.WithAttributes(
					attribute.String("method", c.Request.Method),
					attribute.String("path", path),
				))
			}
		}
	}
}

func rateLimitOutcome(c *gin.Context) string {
	d, ok := GetDecision(c)
	switch {
	case !ok:
		return "none"
	case d.Allowed:
		return "allowed"
	default:
		return "throttled"
	}
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
