package digitize

import (
	"errors"
	"fmt"
)

// Sanity-check failures. Each one makes the attempt retryable.
var (
	ErrEmptyCurve          = errors.New("curve has no samples")
	ErrLowInitialRetention = errors.New("first sample retention below threshold")
	ErrNotDecreasing       = errors.New("curve does not decrease")
)

// AttemptsExhaustedError is returned when every attempt failed. Cause is the last attempt's error.
type AttemptsExhaustedError struct {
	Attempts int
	Cause    error
}

func (e *AttemptsExhaustedError) Error() string {
	return fmt.Sprintf("curve digitization failed after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *AttemptsExhaustedError) Unwrap() error {
	return e.Cause
}
