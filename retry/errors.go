package retry

import (
	"fmt"
	"strings"
)

// MultiError returned when Do gives up. It reads as the final attempt's
// error, so errors.Is and errors.As see the cause that stopped the loop.
type MultiError struct {
	Errors   []error
	Attempts int
}

func (e *MultiError) last() error {
	if n := len(e.Errors); n > 0 {
		return e.Errors[n-1]
	}
	return nil
}

func (e *MultiError) Error() string {
	if err := e.last(); err != nil {
		return err.Error()
	}
	return "retry: gave up without an error"
}

func (e *MultiError) Unwrap() error { return e.last() }

// AllErrors every attempt's error, for logs
func (e *MultiError) AllErrors() string {
	lines := make([]string, 0, len(e.Errors)+1)
	lines = append(lines, fmt.Sprintf("retry failed after %d attempts:", e.Attempts))
	for i, err := range e.Errors {
		lines = append(lines, fmt.Sprintf("  attempt %d: %v", i+1, err))
	}
	return strings.Join(lines, "\n")
}
