package jwt

import (
	"fmt"
	"time"
)

// Config JWT verification settings
type Config struct {
	Enabled bool `mapstructure:"enabled"`

	// Algorithm HS256, HS384 or HS512
	Algorithm string `mapstructure:"algorithm"`
	Secret    string `mapstructure:"secret"`

	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`

	// TTL access token lifetime used by GenerateAccessToken
	TTL time.Duration `mapstructure:"ttl"`

	// ClockSkew leeway applied to exp/nbf
	ClockSkew time.Duration `mapstructure:"clock_skew"`

	// UserIDClaim claim used as the rate limit user id (default "sub")
	UserIDClaim string `mapstructure:"user_id_claim"`
}

// ApplyDefaults fills zero-valued fields
func (c *Config) ApplyDefaults() {
	if c.Algorithm == "" {
		c.Algorithm = "HS256"
	}
	if c.TTL == 0 {
		c.TTL = time.Hour
	}
	if c.UserIDClaim == "" {
		c.UserIDClaim = "sub"
	}
}

// Validate configuration; a disabled config is always valid
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return ErrAlgorithmNotSupported
	}
	if c.Secret == "" {
		return ErrSecretEmpty
	}
	if c.TTL <= 0 {
		return fmt.Errorf("jwt: ttl must be positive, got %s", c.TTL)
	}
	if c.ClockSkew < 0 {
		return fmt.Errorf("jwt: clock_skew must not be negative")
	}
	return nil
}
