package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KOMKZ/go-yogan-ratelimit/limiter"
	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.InitManager(logger.ManagerConfig{})
}

// stubChecker returns a fixed decision or error and records what it saw
type stubChecker struct {
	decision limiter.Decision
	err      error
	seen     []limiter.RequestDescriptor
}

func (s *stubChecker) Check(_ context.Context, req limiter.RequestDescriptor) (limiter.Decision, error) {
	s.seen = append(s.seen, req)
	return s.decision, s.err
}

func newTestLimiter(t *testing.T, rate int64) *limiter.Limiter {
	t.Helper()
	cfg := limiter.DefaultConfig()
	cfg.DefaultLimits = limiter.Policy{Rate: rate, Interval: limiter.IntervalMinute}
	l, err := limiter.New(cfg, limiter.WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func doRequest(engine *gin.Engine, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "10.0.0.1:5555"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func okHandler(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
