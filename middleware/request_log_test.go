package middleware

import (
	"net/http"
	"testing"

	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestRequestLog(t *testing.T) {
	log, logs := logger.NewTestLogger("access")
	engine := gin.New()
	engine.Use(RequestLogWithConfig(RequestLogConfig{SkipPaths: []string{"/healthz"}, Logger: log}))
	engine.GET("/api", RateLimiter(newTestLimiter(t, 1)), okHandler)
	engine.GET("/healthz", okHandler)

	doRequest(engine, http.MethodGet, "/healthz", nil)
	doRequest(engine, http.MethodGet, "/api", nil)
	doRequest(engine, http.MethodGet, "/api", nil)
	doRequest(engine, http.MethodGet, "/missing", nil)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 3)

	first := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.EqualValues(t, 200, first["status"])
	assert.Equal(t, "ip:10.0.0.1", first["identity"])
	assert.Equal(t, true, first["allowed"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.EqualValues(t, 429, entries[1].ContextMap()["status"])
	assert.Equal(t, false, entries[1].ContextMap()["allowed"])

	assert.Equal(t, "/missing", entries[2].ContextMap()["path"])
}
