// Package retry bounded retries with backoff for store dials and startup probes
package retry

import (
	"context"
	"errors"
	"time"
)

// Do runs operation until it succeeds, the condition refuses, attempts run out or ctx ends
//
//	err := retry.Do(ctx, func() error { return store.Ping(ctx) },
//	    retry.MaxAttempts(5),
//	    retry.Backoff(retry.ExponentialBackoff(200*time.Millisecond)),
//	    retry.Condition(retry.RetryOnError(limiter.ErrStoreUnavailable)))
func Do(ctx context.Context, operation func() error, opts ...Option) error {
	_, err := DoWithData(ctx, func() (struct{}, error) {
		return struct{}{}, operation()
	}, opts...)
	return err
}

// DoWithData Do for operations that return a value
func DoWithData[T any](ctx context.Context, operation func() (T, error), opts ...Option) (T, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	var (
		result T
		errs   []error
	)
	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var err error
		if cfg.timeout > 0 {
			opCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
			result, err = executeWithContext(opCtx, operation)
			cancel()
		} else {
			result, err = operation()
		}
		if err == nil {
			return result, nil
		}

		errs = append(errs, err)
		if !cfg.condition.ShouldRetry(err, attempt) || attempt == cfg.maxAttempts {
			return result, &MultiError{Errors: errs, Attempts: attempt}
		}

		if cfg.onRetry != nil {
			cfg.onRetry(attempt, err)
		}

		backoff := cfg.backoff.Next(attempt)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < backoff {
			return result, &MultiError{Errors: append(errs, context.DeadlineExceeded), Attempts: attempt}
		}

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		}
	}
	return result, &MultiError{Errors: errs, Attempts: cfg.maxAttempts}
}

// executeWithContext gives up waiting when ctx ends; the operation itself is not interrupted
func executeWithContext[T any](ctx context.Context, operation func() (T, error)) (T, error) {
	type outcome struct {
		data T
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		data, err := operation()
		ch <- outcome{data: data, err: err}
	}()

	select {
	case res := <-ch:
		return res.data, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// GetAttempts attempts made before err was returned, 0 if err did not come from Do
func GetAttempts(err error) int {
	var multiErr *MultiError
	if errors.As(err, &multiErr) {
		return multiErr.Attempts
	}
	return 0
}
