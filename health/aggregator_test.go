package health

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockChecker struct {
	name  string
	err   error
	delay time.Duration
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

func TestAggregator_Check(t *testing.T) {
	tests := []struct {
		name     string
		checkers []Checker
		want     Status
	}{
		{"no checkers", nil, StatusHealthy},
		{"all healthy", []Checker{&mockChecker{name: "limiter"}, &mockChecker{name: "redis"}}, StatusHealthy},
		{"one failing", []Checker{&mockChecker{name: "limiter"}, &mockChecker{name: "redis", err: errors.New("refused")}}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(time.Second)
			for _, c := range tt.checkers {
				agg.Register(c)
			}

			resp := agg.Check(context.Background())
			assert.Equal(t, tt.want, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checkers))
		})
	}
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(20 * time.Millisecond)
	agg.Register(&mockChecker{name: "slow", delay: time.Second})
	agg.SetMetadata("storage", "redis")

	resp := agg.Check(context.Background())
	assert.False(t, resp.IsHealthy())
	assert.Contains(t, resp.Checks["slow"].Error, "deadline")
	assert.Equal(t, "redis", resp.Metadata["storage"])
}

func TestOverallStatus_Degraded(t *testing.T) {
	assert.Equal(t, StatusDegraded, overallStatus(map[string]CheckResult{
		"a": {Status: StatusHealthy},
		"b": {Status: StatusDegraded},
	}))
}

func TestAggregator_DegradedChecker(t *testing.T) {
	agg := NewAggregator(time.Second)
	agg.Register(&mockChecker{name: "store", err: fmt.Errorf("%w: circuit half open", ErrDegraded)})
	agg.Register(&mockChecker{name: "other"})

	resp := agg.Check(context.Background())
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, StatusDegraded, resp.Checks["store"].Status)
	assert.Contains(t, resp.Checks["store"].Error, "half open")
	assert.Equal(t, StatusHealthy, resp.Checks["other"].Status)
}
