package limiter

import "sync/atomic"

// MetricsSnapshot point-in-time copy of the counters
type MetricsSnapshot struct {
	RequestsTotal    int64   `json:"requests_total"`
	ThrottledTotal   int64   `json:"throttled_total"`
	StoreErrorsTotal int64   `json:"store_errors_total"`
	ThrottleRate     float64 `json:"throttle_rate"`
}

// Metrics request counters owned by one Limiter
type Metrics struct {
	requests    atomic.Int64
	throttled   atomic.Int64
	storeErrors atomic.Int64
}

// NewMetrics creates zeroed counters
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) recordRequest()    { m.requests.Add(1) }
func (m *Metrics) recordThrottled()  { m.throttled.Add(1) }
func (m *Metrics) recordStoreError() { m.storeErrors.Add(1) }

// Snapshot returns a copy; callers never see the live counters
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		RequestsTotal:    m.requests.Load(),
		ThrottledTotal:   m.throttled.Load(),
		StoreErrorsTotal: m.storeErrors.Load(),
	}
	if s.RequestsTotal > 0 {
		s.ThrottleRate = float64(s.ThrottledTotal) / float64(s.RequestsTotal)
	}
	return s
}
