package breaker

// Strategy decides from the window counters whether a closed circuit opens
type Strategy interface {
	ShouldOpen(s MetricsSnapshot, cfg Config) bool
	Name() string
}

type consecutiveFailuresStrategy struct{}

func (consecutiveFailuresStrategy) Name() string { return StrategyConsecutiveFailures }

func (consecutiveFailuresStrategy) ShouldOpen(s MetricsSnapshot, cfg Config) bool {
	return s.ConsecutiveFailures >= int64(cfg.ConsecutiveFailures)
}

type errorRateStrategy struct{}

func (errorRateStrategy) Name() string { return StrategyErrorRate }

func (errorRateStrategy) ShouldOpen(s MetricsSnapshot, cfg Config) bool {
	if s.Requests < int64(cfg.MinRequests) {
		return false
	}
	return s.ErrorRate >= cfg.ErrorRateThreshold
}

// strategyByName unknown names fall back to consecutive failures
func strategyByName(name string) Strategy {
	if name == StrategyErrorRate {
		return errorRateStrategy{}
	}
	return consecutiveFailuresStrategy{}
}
