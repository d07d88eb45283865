package middleware

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-ratelimit/health"
	"github.com/gin-gonic/gin"
)

// HealthCheckHandler HTTP probes over a health.Aggregator
type HealthCheckHandler struct {
	aggregator *health.Aggregator
}

// NewHealthCheckHandler wraps aggregator
func NewHealthCheckHandler(aggregator *health.Aggregator) *HealthCheckHandler {
	return &HealthCheckHandler{aggregator: aggregator}
}

// Handle full check: 503 when unhealthy, degraded still answers 200
func (h *HealthCheckHandler) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := h.aggregator.Check(c.Request.Context())
		status := http.StatusOK
		if resp.Status == health.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}

// HandleLiveness process is up; dependencies are not consulted
func (h *HealthCheckHandler) HandleLiveness() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	}
}

// HandleReadiness not ready while any dependency is unhealthy; degraded still serves
func (h *HealthCheckHandler) HandleReadiness() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := h.aggregator.Check(c.Request.Context())
		if resp.Status == health.StatusUnhealthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": resp.Checks})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
