package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff(100*time.Millisecond, WithJitter(0), WithMaxDelay(time.Second))

	assert.Equal(t, time.Duration(0), b.Next(0))
	assert.Equal(t, 100*time.Millisecond, b.Next(1))
	assert.Equal(t, 200*time.Millisecond, b.Next(2))
	assert.Equal(t, 400*time.Millisecond, b.Next(3))
	assert.Equal(t, time.Second, b.Next(10))
}

func TestExponentialBackoff_Multiplier(t *testing.T) {
	b := ExponentialBackoff(10*time.Millisecond, WithJitter(0), WithMultiplier(3))
	assert.Equal(t, 90*time.Millisecond, b.Next(3))
}

func TestConstantBackoff(t *testing.T) {
	b := ConstantBackoff(50*time.Millisecond, WithJitter(0))
	for attempt := 1; attempt <= 3; attempt++ {
		assert.Equal(t, 50*time.Millisecond, b.Next(attempt))
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	b := ConstantBackoff(time.Second, WithJitter(0.2))
	for i := 0; i < 100; i++ {
		d := b.Next(1)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}

func TestNoBackoff(t *testing.T) {
	assert.Zero(t, NoBackoff().Next(5))
}
