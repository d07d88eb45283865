package httpx

import (
	"github.com/KOMKZ/go-yogan-ratelimit/errcode"
	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const errorPolicyKey = "httpx.error_policy"

// errorPolicy ErrorLoggingConfig compiled once per router
type errorPolicy struct {
	enabled   bool
	ignored   map[int]struct{}
	fullChain bool
	level     zapcore.Level
}

// disabledPolicy used when the middleware is not installed
var disabledPolicy = &errorPolicy{}

func compilePolicy(cfg ErrorLoggingConfig) *errorPolicy {
	p := &errorPolicy{
		enabled:   cfg.Enable,
		ignored:   make(map[int]struct{}, len(cfg.IgnoreHTTPStatus)),
		fullChain: cfg.FullErrorChain,
		level:     zapcore.ErrorLevel,
	}
	for _, status := range cfg.IgnoreHTTPStatus {
		p.ignored[status] = struct{}{}
	}
	switch cfg.LogLevel {
	case "warn":
		p.level = zapcore.WarnLevel
	case "info":
		p.level = zapcore.InfoLevel
	}
	return p
}

// ErrorLoggingMiddleware lets HandleError log failed requests under cfg
func ErrorLoggingMiddleware(cfg ErrorLoggingConfig) gin.HandlerFunc {
	policy := compilePolicy(cfg)
	return func(c *gin.Context) {
		c.Set(errorPolicyKey, policy)
		c.Next()
	}
}

func policyFor(c *gin.Context) *errorPolicy {
	if v, ok := c.Get(errorPolicyKey); ok {
		if p, ok := v.(*errorPolicy); ok {
			return p
		}
	}
	return disabledPolicy
}

func (p *errorPolicy) shouldLog(status int) bool {
	if !p.enabled {
		return false
	}
	_, skip := p.ignored[status]
	return !skip
}

func (p *errorPolicy) log(c *gin.Context, layered *errcode.LayeredError, err error) {
	fields := []zap.Field{
		zap.Int("error_code", layered.Code()),
		zap.String("error_msg", layered.Message()),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
	}
	if p.fullChain {
		fields = append(fields, zap.String("error_chain", layered.String()), zap.Error(err))
	}

	ctx := c.Request.Context()
	log := logger.GetLogger("httpx")
	switch p.level {
	case zapcore.InfoLevel:
		log.InfoCtx(ctx, "request failed", fields...)
	case zapcore.WarnLevel:
		log.WarnCtx(ctx, "request failed", fields...)
	default:
		log.ErrorCtx(ctx, "request failed", fields...)
	}
}
