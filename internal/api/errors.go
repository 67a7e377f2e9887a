package api

import (
	"fmt"
	"time"
)

// APIError represents an HTTP error response from the relay.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("relay error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("relay error %d", e.StatusCode)
}

// NetworkError represents a network-level failure reaching the relay.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// TimeoutError represents a relay call that exceeded its deadline.
// Surfaced distinctly from NetworkError so callers can tell "slow" from
// "unreachable".
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Operation, e.Timeout)
}
