package retry

import "time"

type config struct {
	maxAttempts int
	backoff     BackoffStrategy
	condition   RetryCondition
	onRetry     func(attempt int, err error)
	timeout     time.Duration // per attempt, 0 = none
}

func defaultConfig() *config {
	return &config{
		maxAttempts: 3,
		backoff:     ExponentialBackoff(100 * time.Millisecond),
		condition:   AlwaysRetry(),
	}
}

// Option configures Do
type Option func(*config)

// MaxAttempts total attempts including the first (default 3)
func MaxAttempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// Backoff delay strategy between attempts
func Backoff(b BackoffStrategy) Option {
	return func(c *config) {
		if b != nil {
			c.backoff = b
		}
	}
}

// Condition decides whether an error is worth another attempt
func Condition(cond RetryCondition) Option {
	return func(c *config) {
		if cond != nil {
			c.condition = cond
		}
	}
}

// OnRetry called before each wait, e.g. to log the failed attempt
func OnRetry(f func(attempt int, err error)) Option {
	return func(c *config) { c.onRetry = f }
}

// Timeout bounds each attempt
func Timeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}
