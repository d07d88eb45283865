package middleware

import (
	"errors"
	"strings"

	"github.com/KOMKZ/go-yogan-ratelimit/errcode"
	"github.com/KOMKZ/go-yogan-ratelimit/httpx"
	"github.com/KOMKZ/go-yogan-ratelimit/jwt"
	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// UserIDKey gin context key of the authenticated user id
	UserIDKey = "user_id"

	// ClaimsKey gin context key of the verified *jwt.Claims
	ClaimsKey = "jwt_claims"
)

// JWTConfig bearer token identity middleware configuration
type JWTConfig struct {
	// TokenLookup "header:<name>" or "query:<name>" (default "header:Authorization")
	TokenLookup string

	// TokenHeadName scheme prefix stripped from the header value (default "Bearer")
	TokenHeadName string

	// Required reject requests without a token; otherwise they continue anonymously
	Required bool

	// ErrorHandler writes the rejection (default 401 through errcode)
	ErrorHandler func(*gin.Context, error)
}

// DefaultJWTConfig optional bearer token from the Authorization header
func DefaultJWTConfig() JWTConfig {
	return JWTConfig{
		TokenLookup:   "header:Authorization",
		TokenHeadName: "Bearer",
	}
}

// JWTIdentity verifies a bearer token and exposes its user id to the rate
// limiter through UserIDKey. A token that is present but invalid is always
// rejected; a missing token is rejected only when Required is set.
func JWTIdentity(tm jwt.TokenManager, cfg JWTConfig) gin.HandlerFunc {
	if tm == nil {
		panic("JWTIdentity: token manager cannot be nil")
	}
	if cfg.TokenLookup == "" {
		cfg.TokenLookup = "header:Authorization"
	}
	if cfg.TokenHeadName == "" {
		cfg.TokenHeadName = "Bearer"
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultJWTErrorHandler
	}

	return func(c *gin.Context) {
		token := extractToken(c, cfg)
		if token == "" {
			if cfg.Required {
				cfg.ErrorHandler(c, jwt.ErrTokenMissing)
				return
			}
			c.Next()
			return
		}

		claims, err := tm.VerifyToken(c.Request.Context(), token)
		if err != nil {
			logger.GetLogger("yogan").DebugCtx(c.Request.Context(), "token rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			cfg.ErrorHandler(c, err)
			return
		}

		userID := claims.UserID
		if userID == "" {
			userID = claims.Subject
		}
		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

func extractToken(c *gin.Context, cfg JWTConfig) string {
	source, name, ok := strings.Cut(cfg.TokenLookup, ":")
	if !ok {
		return ""
	}

	switch source {
	case "header":
		value := c.GetHeader(name)
		if value == "" {
			return ""
		}
		prefix := cfg.TokenHeadName + " "
		if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
			return strings.TrimSpace(value[len(prefix):])
		}
		return ""
	case "query":
		return c.Query(name)
	default:
		return ""
	}
}

func defaultJWTErrorHandler(c *gin.Context, err error) {
	msg := "invalid token"
	switch {
	case errors.Is(err, jwt.ErrTokenMissing):
		msg = "token missing"
	case errors.Is(err, jwt.ErrTokenExpired):
		msg = "token expired"
	}
	httpx.HandleError(c, errcode.ErrUnauthorized.Wrap(err).WithMsg(msg))
	c.Abort()
}

// GetClaims verified claims, if JWTIdentity accepted a token
func GetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	return claims, ok
}

// GetUserID authenticated user id, "" for anonymous requests
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
