package breaker

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Strategy names
const (
	StrategyConsecutiveFailures = "consecutive_failures"
	StrategyErrorRate           = "error_rate"
)

// Config breaker settings; a disabled breaker is never built
type Config struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// Strategy consecutive_failures (default) or error_rate
	Strategy string `mapstructure:"strategy" json:"strategy"`

	// ConsecutiveFailures failures in a row that open the circuit
	ConsecutiveFailures int `mapstructure:"consecutive_failures" json:"consecutive_failures"`

	// MinRequests calls in the window before error_rate is evaluated
	MinRequests int `mapstructure:"min_requests" json:"min_requests"`

	// ErrorRateThreshold 0 < x <= 1
	ErrorRateThreshold float64 `mapstructure:"error_rate_threshold" json:"error_rate_threshold"`

	// WindowSize rolling window for error_rate counters
	WindowSize time.Duration `mapstructure:"window_size" json:"window_size"`

	// Timeout how long the circuit stays open before probing
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`

	// HalfOpenRequests probes admitted while half-open; that many successes close it
	HalfOpenRequests int `mapstructure:"half_open_requests" json:"half_open_requests"`
}

// DefaultConfig disabled; five consecutive failures open the circuit for 5s
func DefaultConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields
func (c *Config) ApplyDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyConsecutiveFailures
	}
	if c.ConsecutiveFailures <= 0 {
		c.ConsecutiveFailures = 5
	}
	if c.MinRequests <= 0 {
		c.MinRequests = 20
	}
	if c.ErrorRateThreshold <= 0 {
		c.ErrorRateThreshold = 0.5
	}
	if c.WindowSize <= 0 {
		c.WindowSize = 10 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.HalfOpenRequests <= 0 {
		c.HalfOpenRequests = 1
	}
}

// Validate after ApplyDefaults
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Strategy, validation.In(StrategyConsecutiveFailures, StrategyErrorRate)),
		validation.Field(&c.ErrorRateThreshold, validation.Max(1.0)),
	)
}
