package jwt

import "time"

// Claims verified token contents
type Claims struct {
	Subject   string    `json:"sub"`
	UserID    string    `json:"user_id,omitempty"`
	Issuer    string    `json:"iss,omitempty"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
	JTI       string    `json:"jti,omitempty"`
	Roles     []string  `json:"roles,omitempty"`

	Extra map[string]interface{} `json:"extra,omitempty"`
}

// TTL remaining lifetime, 0 when the token never expires
func (c *Claims) TTL() time.Duration {
	if c.ExpiresAt.IsZero() {
		return 0
	}
	return time.Until(c.ExpiresAt)
}
