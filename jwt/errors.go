package jwt

import "errors"

// Verification failures. TokenManager maps the library's errors onto these.
var (
	ErrTokenMissing     = errors.New("jwt: token missing")
	ErrTokenInvalid     = errors.New("jwt: token invalid")
	ErrTokenExpired     = errors.New("jwt: token expired")
	ErrTokenNotYetValid = errors.New("jwt: token not yet valid")
	ErrInvalidSignature = errors.New("jwt: invalid signature")
	ErrInvalidClaims    = errors.New("jwt: invalid claims")
)

// Configuration errors
var (
	ErrSecretEmpty           = errors.New("jwt: secret is empty")
	ErrAlgorithmNotSupported = errors.New("jwt: only HMAC algorithms are supported")
)
