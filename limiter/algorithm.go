package limiter

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// AlgorithmType rate limiting algorithm
type AlgorithmType string

const (
	AlgorithmTokenBucket   AlgorithmType = "token_bucket"
	AlgorithmSlidingWindow AlgorithmType = "sliding_window"
)

// String implements fmt.Stringer
func (a AlgorithmType) String() string {
	return string(a)
}

// Algorithm counting strategy behind a policy
type Algorithm interface {
	// Check consumes one unit of quota for identity if available
	Check(ctx context.Context, identity string, policy Policy) (Decision, error)

	// Reset restores a full quota for identity
	Reset(ctx context.Context, identity string, policy Policy) error

	// Usage reports consumed quota without changing state
	Usage(ctx context.Context, identity string, policy Policy) (float64, error)

	// Type algorithm name
	Type() AlgorithmType
}

// scripted tracks whether the store runs Lua; once it reports
// ErrUnsupportedOperation the algorithm stays on the locked local path.
type scripted struct {
	unsupported atomic.Bool
}

func (s *scripted) tryEval(ctx context.Context, store Store, script string, keys []string, args ...interface{}) (interface{}, bool, error) {
	if s.unsupported.Load() {
		return nil, false, nil
	}
	res, err := store.Eval(ctx, script, keys, args...)
	if errors.Is(err, ErrUnsupportedOperation) {
		s.unsupported.Store(true)
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}
	return res, true, nil
}

func ttlSeconds(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}
