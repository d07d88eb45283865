package errcode

import "net/http"

const (
	// ModuleRateLimit module code of the rate limiter
	ModuleRateLimit = 42

	moduleName = "ratelimit"
)

var (
	// ErrRateLimited request quota exhausted
	ErrRateLimited = Register(New(ModuleRateLimit, 1, moduleName,
		"error.ratelimit.exceeded", "Rate limit exceeded", http.StatusTooManyRequests))

	// ErrLimiterUnavailable the limiter store could not be reached and the adapter fails closed
	ErrLimiterUnavailable = Register(New(ModuleRateLimit, 2, moduleName,
		"error.ratelimit.unavailable", "Rate limiter unavailable", http.StatusServiceUnavailable))

	// ErrInvalidRequest malformed admin request
	ErrInvalidRequest = Register(New(ModuleRateLimit, 3, moduleName,
		"error.ratelimit.invalid_request", "Invalid request", http.StatusBadRequest))

	// ErrInvalidPolicy policy rejected by the limiter
	ErrInvalidPolicy = Register(New(ModuleRateLimit, 4, moduleName,
		"error.ratelimit.invalid_policy", "Invalid rate limit policy", http.StatusBadRequest))

	// ErrUnauthorized bearer token rejected
	ErrUnauthorized = Register(New(ModuleRateLimit, 5, moduleName,
		"error.ratelimit.unauthorized", "Unauthorized", http.StatusUnauthorized))

	// ErrInternal unexpected failure
	ErrInternal = Register(New(ModuleRateLimit, 9999, moduleName,
		"error.ratelimit.internal", "Internal error", http.StatusInternalServerError))
)
