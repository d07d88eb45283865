package main

import (
	"context"
	"net/http"
	"testing"

	"github.com/KOMKZ/go-yogan-ratelimit/errcode"
	"github.com/KOMKZ/go-yogan-ratelimit/jwt"
	"github.com/KOMKZ/go-yogan-ratelimit/limiter"
	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/KOMKZ/go-yogan-ratelimit/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func routerConfig(rate int64) limiter.Config {
	cfg := limiter.DefaultConfig()
	cfg.DefaultLimits = limiter.Policy{Rate: rate, Interval: limiter.IntervalHour}
	return cfg
}

func TestRouter_APIThrottled(t *testing.T) {
	engine := newTestRouter(newRouterLimiter(t, routerConfig(2)), nil)

	for i, remaining := range []string{"1", "0"} {
		w := doRequest(engine, http.MethodGet, "/api/ping", "", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		assert.Equal(t, remaining, w.Header().Get(middleware.HeaderRemaining))
	}

	w := doRequest(engine, http.MethodGet, "/api/ping", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRetryAfter))
	assert.Contains(t, w.Body.String(), "2 requests per hour")

	// another client keeps its own quota
	w = doRequest(engine, http.MethodGet, "/api/ping", "", map[string]string{"X-Forwarded-For": "198.51.100.7"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ProbesAndAdminNotLimited(t *testing.T) {
	engine := newTestRouter(newRouterLimiter(t, routerConfig(1)), nil)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(engine, http.MethodGet, "/healthz", "", nil).Code)
		assert.Equal(t, http.StatusOK, doRequest(engine, http.MethodGet, "/healthz/live", "", nil).Code)
		assert.Equal(t, http.StatusOK, doRequest(engine, http.MethodGet, "/healthz/ready", "", nil).Code)
	}
	assert.Empty(t, doRequest(engine, http.MethodGet, "/healthz", "", nil).Header().Get(middleware.HeaderLimit))
}

func TestRouter_SkipPaths(t *testing.T) {
	engine := newTestRouter(newRouterLimiter(t, routerConfig(1)), func(d *routerDeps) {
		d.server.SkipPaths = []string{"/api/ping"}
	})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(engine, http.MethodGet, "/api/ping", "", nil).Code)
	}
}

func TestRouter_APIKeyIdentity(t *testing.T) {
	l := newRouterLimiter(t, routerConfig(1))
	engine := newTestRouter(l, func(d *routerDeps) {
		d.server.APIKeyHeader = "X-Client-Key"
	})

	key := map[string]string{"X-Client-Key": "k-123"}
	require.Equal(t, http.StatusOK, doRequest(engine, http.MethodGet, "/api/items/1", "", key).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(engine, http.MethodGet, "/api/items/1", "", key).Code)

	used, err := l.Usage(context.Background(), "apikey:k-123", l.PolicyFor("/api/items/1"))
	require.NoError(t, err)
	assert.InDelta(t, 1, used, 0.01)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	engine := newTestRouter(newRouterLimiter(t, routerConfig(1)), nil)

	doRequest(engine, http.MethodGet, "/api/ping", "", nil)
	doRequest(engine, http.MethodGet, "/api/ping", "", nil)

	w := doRequest(engine, http.MethodGet, "/metrics/limiter", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.EqualValues(t, 2, env.Data["requests_total"])
	assert.EqualValues(t, 1, env.Data["throttled_total"])
	assert.InDelta(t, 0.5, env.Data["throttle_rate"], 0.001)
}

func TestRouter_AdminReset(t *testing.T) {
	engine := newTestRouter(newRouterLimiter(t, routerConfig(1)), nil)

	require.Equal(t, http.StatusOK, doRequest(engine, http.MethodGet, "/api/ping", "", nil).Code)
	require.Equal(t, http.StatusTooManyRequests, doRequest(engine, http.MethodGet, "/api/ping", "", nil).Code)

	w := doRequest(engine, http.MethodPost, "/admin/reset", `{"identity":"ip:192.0.2.10","route":"/api/ping"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decodeEnvelope(t, w)
	assert.Equal(t, "ip:192.0.2.10", env.Data["identity"])

	assert.Equal(t, http.StatusOK, doRequest(engine, http.MethodGet, "/api/ping", "", nil).Code)
}

func TestRouter_AdminValidation(t *testing.T) {
	engine := newTestRouter(newRouterLimiter(t, routerConfig(1)), nil)

	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"reset missing identity", http.MethodPost, "/admin/reset", `{"route":"/api/ping"}`},
		{"reset bad identity", http.MethodPost, "/admin/reset", `{"identity":"bob"}`},
		{"usage missing identity", http.MethodGet, "/admin/usage", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(engine, tt.method, tt.target, tt.body, nil)
			require.Equal(t, http.StatusBadRequest, w.Code)

			env := decodeEnvelope(t, w)
			assert.Equal(t, errcode.ErrInvalidRequest.Code(), env.Code)
			fields, ok := env.Data["fields"].(map[string]interface{})
			require.True(t, ok, w.Body.String())
			assert.Contains(t, fields, "identity")
		})
	}

	w := doRequest(engine, http.MethodPost, "/admin/reset", `{"identity":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_AdminUsage(t *testing.T) {
	engine := newTestRouter(newRouterLimiter(t, routerConfig(3)), nil)

	doRequest(engine, http.MethodGet, "/api/ping", "", nil)
	doRequest(engine, http.MethodGet, "/api/ping", "", nil)

	w := doRequest(engine, http.MethodGet, "/admin/usage?identity=ip:192.0.2.10&route=/api/ping", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env := decodeEnvelope(t, w)
	assert.Equal(t, "ip:192.0.2.10", env.Data["identity"])
	assert.InDelta(t, 2, env.Data["usage"], 0.01)
	assert.EqualValues(t, 1, env.Data["remaining"])

	// reading usage does not count a request
	assert.Equal(t, "0", doRequest(engine, http.MethodGet, "/api/ping", "", nil).Header().Get(middleware.HeaderRemaining))
}

func TestRouter_FailClosed(t *testing.T) {
	l := newRouterLimiter(t, routerConfig(5))
	closed := false
	engine := newTestRouter(l, func(d *routerDeps) {
		d.server.FailOpen = &closed
	})
	require.NoError(t, l.Close())

	w := doRequest(engine, http.MethodGet, "/api/ping", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, errcode.ErrLimiterUnavailable.Code(), decodeEnvelope(t, w).Code)

	w = doRequest(engine, http.MethodGet, "/healthz/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_FailOpen(t *testing.T) {
	l := newRouterLimiter(t, routerConfig(5))
	engine := newTestRouter(l, nil)
	require.NoError(t, l.Close())

	assert.Equal(t, http.StatusOK, doRequest(engine, http.MethodGet, "/api/ping", "", nil).Code)
}

func TestRouter_JWTIdentity(t *testing.T) {
	cfg := routerConfig(1)
	cfg.ClientIdentifier = limiter.IdentifyByUserID
	l := newRouterLimiter(t, cfg)

	tokens, err := jwt.NewTokenManager(jwt.Config{Secret: "router-test-secret-0123456789"}, logger.NewNopLogger())
	require.NoError(t, err)
	engine := newTestRouter(l, func(d *routerDeps) { d.tokens = tokens })

	bearer := func(subject string) map[string]string {
		token, err := tokens.GenerateAccessToken(context.Background(), subject, nil)
		require.NoError(t, err)
		return map[string]string{"Authorization": "Bearer " + token}
	}

	alice := bearer("alice")
	require.Equal(t, http.StatusOK, doRequest(engine, http.MethodGet, "/api/ping", "", alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(engine, http.MethodGet, "/api/ping", "", alice).Code)

	// same address, different user
	assert.Equal(t, http.StatusOK, doRequest(engine, http.MethodGet, "/api/ping", "", bearer("bob")).Code)

	w := doRequest(engine, http.MethodGet, "/api/ping", "", map[string]string{"Authorization": "Bearer not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// anonymous requests fall back to the client address
	assert.Equal(t, http.StatusOK, doRequest(engine, http.MethodGet, "/api/ping", "", nil).Code)
}

func TestRouter_NotFound(t *testing.T) {
	engine := newTestRouter(newRouterLimiter(t, routerConfig(1)), nil)

	w := doRequest(engine, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decodeEnvelope(t, w).Msg, "route not found")

	w = doRequest(engine, http.MethodDelete, "/healthz", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
