package limiter

import (
	"fmt"

	"github.com/KOMKZ/go-yogan-ratelimit/config"
	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	rediscomp "github.com/KOMKZ/go-yogan-ratelimit/redis"
	"github.com/samber/do/v2"
)

// ConfigKey root key of the limiter section in the config file
const ConfigKey = "ratelimit"

// ProvideConfig reads the limiter section from the registered *config.Loader
func ProvideConfig(i do.Injector) (Config, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := loader.UnmarshalKey(ConfigKey, &cfg); err != nil {
		return Config{}, fmt.Errorf("read %s config: %w", ConfigKey, err)
	}
	return cfg, nil
}

// ProvideLimiter builds the limiter from the container's Config.
// *OTelMetrics and *redis.Metrics are picked up when registered.
//
// Usage:
//
//	do.Provide(injector, limiter.ProvideConfig)
//	do.Provide(injector, limiter.ProvideLimiter)
//	l := do.MustInvoke[*limiter.Limiter](injector)
func ProvideLimiter(i do.Injector) (*Limiter, error) {
	cfg, err := do.Invoke[Config](i)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithLogger(logger.GetLogger("yogan"))}
	if m, err := do.Invoke[*OTelMetrics](i); err == nil {
		opts = append(opts, WithOTelMetrics(m))
	}
	if m, err := do.Invoke[*rediscomp.Metrics](i); err == nil {
		opts = append(opts, WithRedisHooks(rediscomp.NewMetricsHook(m, "ratelimit")))
	}
	return New(cfg, opts...)
}
