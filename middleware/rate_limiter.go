package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/KOMKZ/go-yogan-ratelimit/errcode"
	"github.com/KOMKZ/go-yogan-ratelimit/httpx"
	"github.com/KOMKZ/go-yogan-ratelimit/limiter"
	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// DecisionKey gin context key holding the limiter.Decision of the request
	DecisionKey = "ratelimit_decision"

	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Checker the part of *limiter.Limiter the middleware needs
type Checker interface {
	Check(ctx context.Context, req limiter.RequestDescriptor) (limiter.Decision, error)
}

// RateLimiterConfig rate limit middleware configuration
type RateLimiterConfig struct {
	// Limiter decides each request (required)
	Limiter Checker

	// APIKeyHeader header carrying the API key (default "X-API-Key"); query api_key is the fallback
	APIKeyHeader string

	// UserIDKey gin context key set by authentication (default "user_id")
	UserIDKey string

	// RouteFunc route used for policy lookup (default the request path)
	RouteFunc func(*gin.Context) string

	// SkipPaths exact paths that bypass the limiter
	SkipPaths []string

	// SkipFunc custom bypass condition
	SkipFunc func(*gin.Context) bool

	// FailOpen admit requests when the limiter errors; false answers 503
	FailOpen bool

	// ErrorHandler replaces the FailOpen behaviour when set
	ErrorHandler func(*gin.Context, error)

	// RateLimitHandler writes the deny response (default 429 JSON)
	RateLimitHandler func(*gin.Context, limiter.Decision)

	Logger *logger.CtxZapLogger
}

// DefaultRateLimiterConfig fail open, X-API-Key header, path as route
func DefaultRateLimiterConfig(l Checker) RateLimiterConfig {
	return RateLimiterConfig{
		Limiter:  l,
		FailOpen: true,
	}
}

// RateLimiter enforces the limiter with default settings
//
//	engine.Use(middleware.RateLimiter(l))
//
//	cfg := middleware.DefaultRateLimiterConfig(l)
//	cfg.SkipPaths = []string{"/healthz"}
//	engine.Use(middleware.RateLimiterWithConfig(cfg))
func RateLimiter(l Checker) gin.HandlerFunc {
	return RateLimiterWithConfig(DefaultRateLimiterConfig(l))
}

// RateLimiterWithConfig enforces the limiter with cfg
func RateLimiterWithConfig(cfg RateLimiterConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		panic("RateLimiterConfig.Limiter cannot be nil")
	}
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = "X-API-Key"
	}
	if cfg.UserIDKey == "" {
		cfg.UserIDKey = UserIDKey
	}
	if cfg.RouteFunc == nil {
		cfg.RouteFunc = func(c *gin.Context) string { return c.Request.URL.Path }
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger("yogan")
	}
	if cfg.RateLimitHandler == nil {
		cfg.RateLimitHandler = defaultRateLimitHandler
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = failHandler(cfg.FailOpen, cfg.Logger)
	}

	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] || (cfg.SkipFunc != nil && cfg.SkipFunc(c)) {
			c.Next()
			return
		}

		d, err := cfg.Limiter.Check(c.Request.Context(), describe(c, cfg))
		if err != nil {
			cfg.ErrorHandler(c, err)
			return
		}

		c.Set(DecisionKey, d)
		setRateLimitHeaders(c, d)
		if !d.Allowed {
			cfg.RateLimitHandler(c, d)
			return
		}
		c.Next()
	}
}

// describe builds the limiter input from the request
func describe(c *gin.Context, cfg RateLimiterConfig) limiter.RequestDescriptor {
	forwarded := c.GetHeader("X-Forwarded-For")
	if forwarded == "" {
		forwarded = c.GetHeader("X-Real-IP")
	}
	apiKey := c.GetHeader(cfg.APIKeyHeader)
	if apiKey == "" {
		apiKey = c.Query("api_key")
	}
	return limiter.RequestDescriptor{
		RemoteAddr:   c.Request.RemoteAddr,
		ForwardedFor: forwarded,
		APIKey:       apiKey,
		UserID:       c.GetString(cfg.UserIDKey),
		Route:        cfg.RouteFunc(c),
	}
}

func setRateLimitHeaders(c *gin.Context, d limiter.Decision) {
	h := c.Writer.Header()
	h.Set(HeaderLimit, strconv.FormatInt(d.Limit, 10))
	h.Set(HeaderRemaining, strconv.FormatInt(d.Remaining, 10))
	h.Set(HeaderReset, strconv.FormatInt(d.ResetSeconds, 10))
	if !d.Allowed {
		h.Set(HeaderRetryAfter, strconv.FormatInt(d.RetryAfterSeconds, 10))
	}
}

func defaultRateLimitHandler(c *gin.Context, d limiter.Decision) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error": errcode.ErrRateLimited.Message(),
		"message": fmt.Sprintf("You have exceeded the request limit: %d requests per %s",
			d.Limit, d.Policy.Interval),
		"retry_after": d.RetryAfterSeconds,
	})
}

// failHandler open: log and continue; closed: 503 through errcode
func failHandler(open bool, log *logger.CtxZapLogger) func(*gin.Context, error) {
	return func(c *gin.Context, err error) {
		if open {
			log.WarnCtx(c.Request.Context(), "rate limiter unavailable, admitting request",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			c.Next()
			return
		}
		httpx.HandleError(c, errcode.ErrLimiterUnavailable.Wrap(err))
		c.Abort()
	}
}

// GetDecision decision recorded for this request, if the limiter ran
func GetDecision(c *gin.Context) (limiter.Decision, bool) {
	v, ok := c.Get(DecisionKey)
	if !ok {
		return limiter.Decision{}, false
	}
	d, ok := v.(limiter.Decision)
	return d, ok
}
