package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/KOMKZ/go-yogan-ratelimit/errcode"
	"github.com/KOMKZ/go-yogan-ratelimit/limiter"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowsThenDenies(t *testing.T) {
	engine := gin.New()
	engine.Use(RateLimiter(newTestLimiter(t, 2)))
	engine.GET("/api", okHandler)

	for i, remaining := range []string{"1", "0"} {
		w := doRequest(engine, http.MethodGet, "/api", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		assert.Equal(t, "2", w.Header().Get(HeaderLimit))
		assert.Equal(t, remaining, w.Header().Get(HeaderRemaining))
		assert.NotEmpty(t, w.Header().Get(HeaderReset))
		assert.Empty(t, w.Header().Get(HeaderRetryAfter))
	}

	w := doRequest(engine, http.MethodGet, "/api", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get(HeaderRemaining))
	assert.Equal(t, "30", w.Header().Get(HeaderRetryAfter))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Rate limit exceeded", body["error"])
	assert.Equal(t, "You have exceeded the request limit: 2 requests per minute", body["message"])
	assert.EqualValues(t, 30, body["retry_after"])
}

func TestRateLimiter_IdentitiesAreIndependent(t *testing.T) {
	engine := gin.New()
	engine.Use(RateLimiter(newTestLimiter(t, 1)))
	engine.GET("/api", okHandler)

	assert.Equal(t, http.StatusOK, doRequest(engine, http.MethodGet, "/api", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(engine, http.MethodGet, "/api", nil).Code)

	// forwarded client and API key each get their own bucket
	assert.Equal(t, http.StatusOK, doRequest(engine, http.MethodGet, "/api",
		map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}).Code)
	assert.Equal(t, http.StatusOK, doRequest(engine, http.MethodGet, "/api",
		map[string]string{"X-API-Key": "k1"}).Code)
	assert.Equal(t, http.StatusOK, doRequest(engine, http.MethodGet, "/api?api_key=k2", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(engine, http.MethodGet, "/api?api_key=k2", nil).Code)
}

func TestRateLimiter_Descriptor(t *testing.T) {
	stub := &stubChecker{decision: limiter.Decision{Allowed: true, Limit: 5, Remaining: 4}}
	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(UserIDKey, "u-42")
		c.Next()
	})
	engine.Use(RateLimiter(stub))
	engine.GET("/items/:id", okHandler)

	doRequest(engine, http.MethodGet, "/items/7", map[string]string{
		"X-Real-IP": "198.51.100.2",
		"X-API-Key": "secret",
	})

	require.Len(t, stub.seen, 1)
	assert.Equal(t, limiter.RequestDescriptor{
		RemoteAddr:   "10.0.0.1:5555",
		ForwardedFor: "198.51.100.2",
		APIKey:       "secret",
		UserID:       "u-42",
		Route:        "/items/7",
	}, stub.seen[0])
}

func TestRateLimiter_SkipAndRouteFunc(t *testing.T) {
	stub := &stubChecker{decision: limiter.Decision{Allowed: true}}
	cfg := DefaultRateLimiterConfig(stub)
	cfg.SkipPaths = []string{"/healthz"}
	cfg.SkipFunc = func(c *gin.Context) bool { return c.Request.Method == http.MethodOptions }
	cfg.RouteFunc = func(c *gin.Context) string { return c.FullPath() }

	engine := gin.New()
	engine.Use(RateLimiterWithConfig(cfg))
	engine.GET("/healthz", okHandler)
	engine.OPTIONS("/items/:id", okHandler)
	engine.GET("/items/:id", okHandler)

	doRequest(engine, http.MethodGet, "/healthz", nil)
	doRequest(engine, http.MethodOptions, "/items/1", nil)
	w := doRequest(engine, http.MethodGet, "/items/1", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, stub.seen, 1)
	assert.Equal(t, "/items/:id", stub.seen[0].Route)
}

func TestRateLimiter_FailOpen(t *testing.T) {
	stub := &stubChecker{err: fmt.Errorf("%w: connection refused", limiter.ErrStoreUnavailable)}
	engine := gin.New()
	engine.Use(RateLimiter(stub))
	engine.GET("/api", okHandler)

	w := doRequest(engine, http.MethodGet, "/api", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(HeaderLimit))
}

func TestRateLimiter_FailClosed(t *testing.T) {
	stub := &stubChecker{err: fmt.Errorf("%w: connection refused", limiter.ErrStoreUnavailable)}
	cfg := DefaultRateLimiterConfig(stub)
	cfg.FailOpen = false

	handled := false
	engine := gin.New()
	engine.Use(RateLimiterWithConfig(cfg))
	engine.GET("/api", func(c *gin.Context) {
		handled = true
		okHandler(c)
	})

	w := doRequest(engine, http.MethodGet, "/api", nil)
	assert.False(t, handled)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, errcode.ErrLimiterUnavailable.Code(), body["code"])
}

func TestRateLimiter_CustomHandlers(t *testing.T) {
	denied := &stubChecker{decision: limiter.Decision{Allowed: false, Limit: 1, RetryAfterSeconds: 9}}
	cfg := DefaultRateLimiterConfig(denied)
	cfg.RateLimitHandler = func(c *gin.Context, d limiter.Decision) {
		c.AbortWithStatus(http.StatusTeapot)
	}
	engine := gin.New()
	engine.Use(RateLimiterWithConfig(cfg))
	engine.GET("/api", okHandler)

	w := doRequest(engine, http.MethodGet, "/api", nil)
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "9", w.Header().Get(HeaderRetryAfter))

	var got error
	broken := &stubChecker{err: errors.New("boom")}
	cfg = DefaultRateLimiterConfig(broken)
	cfg.ErrorHandler = func(c *gin.Context, err error) {
		got = err
		c.AbortWithStatus(http.StatusBadGateway)
	}
	engine = gin.New()
	engine.Use(RateLimiterWithConfig(cfg))
	engine.GET("/api", okHandler)

	assert.Equal(t, http.StatusBadGateway, doRequest(engine, http.MethodGet, "/api", nil).Code)
	assert.EqualError(t, got, "boom")
}

func TestRateLimiter_DecisionInContext(t *testing.T) {
	var (
		got limiter.Decision
		ok  bool
	)
	engine := gin.New()
	engine.Use(RateLimiter(newTestLimiter(t, 5)))
	engine.GET("/api", func(c *gin.Context) {
		got, ok = GetDecision(c)
		okHandler(c)
	})

	doRequest(engine, http.MethodGet, "/api", nil)
	require.True(t, ok)
	assert.True(t, got.Allowed)
	assert.Equal(t, "ip:10.0.0.1", got.Identity)
	assert.EqualValues(t, 4, got.Remaining)
}

func TestRateLimiterWithConfig_NilLimiterPanics(t *testing.T) {
	assert.Panics(t, func() { RateLimiterWithConfig(RateLimiterConfig{}) })
}
