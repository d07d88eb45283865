package limiter

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KOMKZ/go-yogan-ratelimit/breaker"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config limiter configuration, read once at construction
type Config struct {
	Storage StorageConfig `mapstructure:"storage" json:"storage"`

	// Algorithm used when a policy does not name one (default token_bucket)
	Algorithm AlgorithmType `mapstructure:"algorithm" json:"algorithm"`

	DefaultLimits Policy `mapstructure:"default_limits" json:"default_limits"`

	// EndpointOverrides route path -> policy, exact match, replaces the default
	EndpointOverrides map[string]Policy `mapstructure:"endpoint_overrides" json:"endpoint_overrides"`

	// ClientIdentifier ip or user_id
	ClientIdentifier ClientIdentifier `mapstructure:"client_identifier" json:"client_identifier"`

	// EventPoolSize goroutines delivering events to listeners
	EventPoolSize int `mapstructure:"event_pool_size" json:"event_pool_size"`
}

// StorageConfig backend selection
type StorageConfig struct {
	Type    StoreType      `mapstructure:"type" json:"type"`
	Options StorageOptions `mapstructure:"options" json:"options"`

	// Breaker optional circuit breaker in front of the store
	Breaker breaker.Config `mapstructure:"breaker" json:"breaker"`
}

// StorageOptions backend parameters; Redis fields are ignored by memory
type StorageOptions struct {
	Host      string `mapstructure:"host" json:"host"`
	Port      int    `mapstructure:"port" json:"port"`
	Password  string `mapstructure:"password" json:"-"`
	DB        int    `mapstructure:"db" json:"db"`
	KeyPrefix string `mapstructure:"key_prefix" json:"key_prefix"`

	SweepInterval time.Duration `mapstructure:"sweep_interval" json:"sweep_interval"`
}

const (
	defaultRate     = 60
	defaultPoolSize = 100
)

// DefaultConfig memory store, token bucket, 60 requests per minute by IP
func DefaultConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields in place
func (c *Config) ApplyDefaults() {
	c.Storage.Type = StoreType(strings.ToLower(string(c.Storage.Type)))
	switch c.Storage.Type {
	case "":
		c.Storage.Type = StoreTypeMemory
	case "remote":
		c.Storage.Type = StoreTypeRedis
	}
	if c.Storage.Type == StoreTypeRedis {
		if c.Storage.Options.Host == "" {
			c.Storage.Options.Host = "localhost"
		}
		if c.Storage.Options.Port == 0 {
			c.Storage.Options.Port = 6379
		}
	}
	if c.Storage.Options.KeyPrefix == "" {
		c.Storage.Options.KeyPrefix = defaultKeyPrefix
	}
	if c.Storage.Options.SweepInterval <= 0 {
		c.Storage.Options.SweepInterval = defaultSweepInterval
	}
	if c.Storage.Breaker.Enabled {
		c.Storage.Breaker.ApplyDefaults()
	}

	if c.Algorithm == "" {
		c.Algorithm = AlgorithmTokenBucket
	}
	if c.ClientIdentifier == "" {
		c.ClientIdentifier = IdentifyByIP
	}
	if c.EventPoolSize <= 0 {
		c.EventPoolSize = defaultPoolSize
	}

	c.DefaultLimits = c.fillPolicy(c.DefaultLimits, true)
	for route, p := range c.EndpointOverrides {
		c.EndpointOverrides[route] = c.fillPolicy(p, false)
	}
}

// fillPolicy only the default policy gets a rate; an override with rate 0 stays invalid
func (c *Config) fillPolicy(p Policy, isDefault bool) Policy {
	if isDefault && p.Rate == 0 {
		p.Rate = defaultRate
	}
	if p.Interval == "" {
		p.Interval = IntervalMinute
	}
	if p.Algorithm == "" {
		p.Algorithm = c.Algorithm
	}
	return p
}

// Validate checks the configuration after defaults are applied
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Algorithm, validation.Required,
			validation.In(AlgorithmTokenBucket, AlgorithmSlidingWindow)),
		validation.Field(&c.ClientIdentifier, validation.Required,
			validation.In(IdentifyByIP, IdentifyByUserID)),
		validation.Field(&c.Storage),
		validation.Field(&c.DefaultLimits),
	)
	if err != nil {
		return toValidationError(err)
	}

	for route, p := range c.EndpointOverrides {
		if err := p.Validate(); err != nil {
			return &ValidationError{Field: "endpoint_overrides." + route, Message: err.Error(), Err: err}
		}
	}
	return nil
}

// Validate storage section
func (s StorageConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Type, validation.Required, validation.In(StoreTypeMemory, StoreTypeRedis)),
		validation.Field(&s.Options),
		validation.Field(&s.Breaker, validation.Skip.When(!s.Breaker.Enabled)),
	)
}

// Validate storage options
func (o StorageOptions) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&o.DB, validation.Min(0), validation.Max(15)),
	)
}

// toValidationError flattens ozzo errors into the first offending field
func toValidationError(err error) error {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		fieldErr := errs[field]
		var nested validation.Errors
		if errors.As(fieldErr, &nested) {
			if inner, ok := toValidationError(nested).(*ValidationError); ok {
				return &ValidationError{Field: field + "." + inner.Field, Message: inner.Message, Err: inner.Err}
			}
		}
		return &ValidationError{Field: field, Message: fieldErr.Error(), Err: fieldErr}
	}
	return err
}

// String short description for logs
func (c Config) String() string {
	return fmt.Sprintf("storage=%s algorithm=%s default=%d/%s overrides=%d by=%s",
		c.Storage.Type, c.Algorithm, c.DefaultLimits.Rate, c.DefaultLimits.Interval,
		len(c.EndpointOverrides), c.ClientIdentifier)
}
