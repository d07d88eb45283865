package retry

import "errors"

// RetryCondition decides whether attempt's error deserves another try
type RetryCondition interface {
	ShouldRetry(err error, attempt int) bool
}

// ConditionFunc adapts a plain function to RetryCondition.
// A nil error is never retried, whatever the function says.
type ConditionFunc func(err error, attempt int) bool

func (f ConditionFunc) ShouldRetry(err error, attempt int) bool {
	return err != nil && f(err, attempt)
}

// AlwaysRetry retries every error
func AlwaysRetry() RetryCondition {
	return ConditionFunc(func(error, int) bool { return true })
}

// NeverRetry makes Do a single attempt
func NeverRetry() RetryCondition {
	return ConditionFunc(func(error, int) bool { return false })
}

// RetryOnError retries only errors matching one of targets (errors.Is)
func RetryOnError(targets ...error) RetryCondition {
	return ConditionFunc(func(err error, _ int) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	})
}

// RetryOnCondition retries when fn reports true
func RetryOnCondition(fn func(error) bool) RetryCondition {
	return ConditionFunc(func(err error, _ int) bool { return fn(err) })
}
