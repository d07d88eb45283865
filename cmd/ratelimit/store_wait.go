package main

import (
	"context"
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-ratelimit/limiter"
	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/KOMKZ/go-yogan-ratelimit/retry"
	"go.uber.org/zap"
)

// storeWaitConfig the "server.store_wait" section: probe the store before serving
type storeWaitConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Backoff  time.Duration `mapstructure:"backoff"`
	// Required refuse to start when the store never answers; otherwise log and serve
	Required bool `mapstructure:"required"`
}

func (c *storeWaitConfig) applyDefaults() {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 200 * time.Millisecond
	}
}

// waitForStore probes the store until it answers, retrying only connectivity errors
func waitForStore(ctx context.Context, checker *limiter.HealthChecker, cfg storeWaitConfig, log *logger.CtxZapLogger) error {
	err := retry.Do(ctx, func() error {
		return checker.Check(ctx)
	},
		retry.MaxAttempts(cfg.Attempts),
		retry.Backoff(retry.ExponentialBackoff(cfg.Backoff, retry.WithMaxDelay(5*time.Second), retry.WithJitter(0.1))),
		retry.Condition(retry.RetryOnError(limiter.ErrStoreUnavailable)),
		retry.OnRetry(func(attempt int, err error) {
			log.WarnCtx(ctx, "store not ready, retrying", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)
	if err == nil {
		return nil
	}
	if cfg.Required {
		return fmt.Errorf("store not ready after %d attempts: %w", retry.GetAttempts(err), err)
	}
	log.WarnCtx(ctx, "store not ready, serving anyway", zap.Error(err))
	return nil
}
