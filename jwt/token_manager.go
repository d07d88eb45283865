// Package jwt HMAC token verification used to derive the rate limit user id
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenManager issues and verifies access tokens
type TokenManager interface {
	// GenerateAccessToken signs a token for subject with optional extra claims
	GenerateAccessToken(ctx context.Context, subject string, claims map[string]interface{}) (string, error)

	// VerifyToken validates signature, exp/nbf, issuer and audience
	VerifyToken(ctx context.Context, token string) (*Claims, error)
}

type tokenManagerImpl struct {
	config        Config
	signingMethod jwt.SigningMethod
	key           []byte
	logger        *logger.CtxZapLogger
	now           func() time.Time
}

// NewTokenManager validates cfg and builds a manager
func NewTokenManager(cfg Config, log *logger.CtxZapLogger) (TokenManager, error) {
	cfg.ApplyDefaults()
	cfg.Enabled = true
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = logger.GetLogger("yogan")
	}

	m := &tokenManagerImpl{
		config: cfg,
		key:    []byte(cfg.Secret),
		logger: log,
		now:    time.Now,
	}
	switch cfg.Algorithm {
	case "HS256":
		m.signingMethod = jwt.SigningMethodHS256
	case "HS384":
		m.signingMethod = jwt.SigningMethodHS384
	case "HS512":
		m.signingMethod = jwt.SigningMethodHS512
	}
	return m, nil
}

// GenerateAccessToken signs subject with the configured TTL
func (m *tokenManagerImpl) GenerateAccessToken(ctx context.Context, subject string, customClaims map[string]interface{}) (string, error) {
	now := m.now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(m.config.TTL).Unix(),
		"jti": uuid.New().String(),
	}
	if m.config.Issuer != "" {
		claims["iss"] = m.config.Issuer
	}
	if m.config.Audience != "" {
		claims["aud"] = m.config.Audience
	}
	for k, v := range customClaims {
		claims[k] = v
	}

	signed, err := jwt.NewWithClaims(m.signingMethod, claims).SignedString(m.key)
	if err != nil {
		m.logger.ErrorCtx(ctx, "failed to sign token", zap.Error(err), zap.String("subject", subject))
		return "", fmt.Errorf("sign token failed: %w", err)
	}

	m.logger.DebugCtx(ctx, "access token generated",
		zap.String("subject", subject),
		zap.Duration("ttl", m.config.TTL))
	return signed, nil
}

// VerifyToken parses and validates tokenString
func (m *tokenManagerImpl) VerifyToken(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.signingMethod.Alg()}),
		jwt.WithLeeway(m.config.ClockSkew),
		jwt.WithTimeFunc(m.now),
		jwt.WithIssuedAt(),
	}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(m.config.Audience))
	}

	mapClaims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, mapClaims, func(*jwt.Token) (interface{}, error) {
		return m.key, nil
	}, opts...)
	if err != nil {
		mapped := parseJWTError(err)
		m.logger.DebugCtx(ctx, "token rejected", zap.Error(err))
		return nil, mapped
	}

	claims, err := m.toClaims(mapClaims)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *tokenManagerImpl) toClaims(mc jwt.MapClaims) (*Claims, error) {
	claims := &Claims{Extra: map[string]interface{}{}}

	claims.Subject, _ = mc.GetSubject()
	claims.Issuer, _ = mc.GetIssuer()
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if jti, ok := mc["jti"].(string); ok {
		claims.JTI = jti
	}
	if roles, ok := mc["roles"].([]interface{}); ok {
		for _, r := range roles {
			if s, ok := r.(string); ok {
				claims.Roles = append(claims.Roles, s)
			}
		}
	}

	switch v := mc[m.config.UserIDClaim].(type) {
	case string:
		claims.UserID = v
	case float64:
		claims.UserID = fmt.Sprintf("%.0f", v)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: claim %q missing", ErrInvalidClaims, m.config.UserIDClaim)
	}

	for k, v := range mc {
		switch k {
		case "sub", "iss", "aud", "iat", "exp", "nbf", "jti", "roles":
		default:
			claims.Extra[k] = v
		}
	}
	return claims, nil
}

// parseJWTError maps library errors onto package sentinels
func parseJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}
