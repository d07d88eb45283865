package breaker

import (
	"sync"
	"time"
)

// MetricsSnapshot counters of the current window
type MetricsSnapshot struct {
	Requests            int64   `json:"requests"`
	Failures            int64   `json:"failures"`
	Rejections          int64   `json:"rejections"`
	ErrorRate           float64 `json:"error_rate"`
	ConsecutiveFailures int64   `json:"consecutive_failures"`
}

// windowMetrics fixed window counters; they restart once the window has elapsed.
// ConsecutiveFailures survives window rollover.
type windowMetrics struct {
	mu          sync.Mutex
	window      time.Duration
	start       time.Time
	requests    int64
	failures    int64
	rejections  int64
	consecutive int64
	now         func() time.Time
}

func newWindowMetrics(window time.Duration, now func() time.Time) *windowMetrics {
	return &windowMetrics{window: window, start: now(), now: now}
}

// roll caller holds mu
func (m *windowMetrics) roll() {
	if now := m.now(); now.Sub(m.start) >= m.window {
		m.start = now
		m.requests, m.failures, m.rejections = 0, 0, 0
	}
}

func (m *windowMetrics) recordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roll()
	m.requests++
	m.consecutive = 0
}

func (m *windowMetrics) recordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roll()
	m.requests++
	m.failures++
	m.consecutive++
}

func (m *windowMetrics) recordRejection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roll()
	m.rejections++
}

func (m *windowMetrics) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.start = m.now()
	m.requests, m.failures, m.rejections, m.consecutive = 0, 0, 0, 0
}

func (m *windowMetrics) snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roll()
	s := MetricsSnapshot{
		Requests:            m.requests,
		Failures:            m.failures,
		Rejections:          m.rejections,
		ConsecutiveFailures: m.consecutive,
	}
	if m.requests > 0 {
		s.ErrorRate = float64(m.failures) / float64(m.requests)
	}
	return s
}
