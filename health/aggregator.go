package health

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrDegraded wrap it to report a dependency that works but is not at full strength
var ErrDegraded = errors.New("degraded")

// Aggregator probes every registered checker in parallel within one deadline
type Aggregator struct {
	timeout time.Duration

	mu       sync.RWMutex
	checkers []Checker
	metadata map[string]interface{}
}

// NewAggregator a non-positive timeout means 5s
func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Aggregator{timeout: timeout, metadata: map[string]interface{}{}}
}

func (a *Aggregator) Register(checker Checker) {
	a.mu.Lock()
	a.checkers = append(a.checkers, checker)
	a.mu.Unlock()
}

// SetMetadata static facts echoed in every response, such as the storage type
func (a *Aggregator) SetMetadata(key string, value interface{}) {
	a.mu.Lock()
	a.metadata[key] = value
	a.mu.Unlock()
}

// Check one failing checker makes the whole response unhealthy
func (a *Aggregator) Check(ctx context.Context) *Response {
	start := time.Now()

	a.mu.RLock()
	checkers := slices.Clone(a.checkers)
	metadata := maps.Clone(a.metadata)
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make([]CheckResult, len(checkers))
	var g errgroup.Group
	for i, checker := range checkers {
		g.Go(func() error {
			results[i] = probe(ctx, checker)
			return nil
		})
	}
	_ = g.Wait()

	resp := &Response{
		Status:   StatusHealthy,
		Checks:   make(map[string]CheckResult, len(results)),
		Metadata: metadata,
	}
	for _, r := range results {
		resp.Checks[r.Name] = r
	}
	resp.Status = overallStatus(resp.Checks)
	resp.Timestamp = time.Now()
	resp.Duration = resp.Timestamp.Sub(start)
	return resp
}

func probe(ctx context.Context, checker Checker) CheckResult {
	start := time.Now()
	err := checker.Check(ctx)
	r := CheckResult{
		Name:      checker.Name(),
		Status:    StatusHealthy,
		Message:   "OK",
		Timestamp: start,
		Duration:  time.Since(start),
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrDegraded):
		r.Status, r.Message, r.Error = StatusDegraded, "Degraded", err.Error()
	default:
		r.Status, r.Message, r.Error = StatusUnhealthy, "Health check failed", err.Error()
	}
	return r
}

// overallStatus worst status among checks
func overallStatus(checks map[string]CheckResult) Status {
	worst := StatusHealthy
	for _, r := range checks {
		if r.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if r.Status == StatusDegraded {
			worst = StatusDegraded
		}
	}
	return worst
}
