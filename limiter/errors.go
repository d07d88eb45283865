package limiter

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound key does not exist or has expired
	ErrKeyNotFound = errors.New("limiter: key not found")

	// ErrStoreUnavailable the backing store could not be reached
	ErrStoreUnavailable = errors.New("limiter: store unavailable")

	// ErrStoreClosed store was used after Close
	ErrStoreClosed = fmt.Errorf("%w: store is closed", ErrStoreUnavailable)

	// ErrInvalidPolicy non-positive rate or unknown algorithm
	ErrInvalidPolicy = errors.New("limiter: invalid policy")

	// ErrUnsupportedOperation the store cannot run the requested operation
	ErrUnsupportedOperation = errors.New("limiter: unsupported operation")
)

// ValidationError configuration validation error
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// Unwrap exposes the underlying cause, e.g. ErrInvalidPolicy
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsStoreUnavailable reports whether err came from an unreachable store
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
