package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy delay before retry number attempt (starting at 1)
type BackoffStrategy interface {
	Next(attempt int) time.Duration
}

// BackoffOption tunes a strategy
type BackoffOption func(*backoff)

// backoff covers both shapes: growth 1 keeps the delay constant.
type backoff struct {
	base     time.Duration
	growth   float64
	ceiling  time.Duration
	spread   float64
	constant bool
}

func newBackoff(base time.Duration, constant bool, opts []BackoffOption) *backoff {
	b := &backoff{base: base, growth: 2, ceiling: 30 * time.Second, spread: 0.2, constant: constant}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithMultiplier growth factor of ExponentialBackoff (default 2)
func WithMultiplier(m float64) BackoffOption {
	return func(b *backoff) {
		if m > 0 {
			b.growth = m
		}
	}
}

// WithMaxDelay caps every delay (default 30s)
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(b *backoff) {
		if d > 0 {
			b.ceiling = d
		}
	}
}

// WithJitter random spread in [0, 1] (default 0.2), applied both ways
func WithJitter(ratio float64) BackoffOption {
	return func(b *backoff) {
		if ratio >= 0 && ratio <= 1 {
			b.spread = ratio
		}
	}
}

// ExponentialBackoff base * multiplier^(attempt-1), capped at the max delay
func ExponentialBackoff(base time.Duration, opts ...BackoffOption) BackoffStrategy {
	return newBackoff(base, false, opts)
}

// ConstantBackoff the same delay every time
func ConstantBackoff(delay time.Duration, opts ...BackoffOption) BackoffStrategy {
	return newBackoff(delay, true, opts)
}

// NoBackoff retries immediately
func NoBackoff() BackoffStrategy {
	return newBackoff(0, true, []BackoffOption{WithJitter(0)})
}

func (b *backoff) Next(attempt int) time.Duration {
	if attempt <= 0 || b.base <= 0 {
		return 0
	}

	d := float64(b.base)
	if !b.constant {
		d = math.Min(d*math.Pow(b.growth, float64(attempt-1)), float64(b.ceiling))
	}
	if b.spread > 0 {
		d += d * b.spread * (2*rand.Float64() - 1)
	}
	return time.Duration(math.Max(d, 0))
}
