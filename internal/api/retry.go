package api

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior for failed relay calls.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int
	// BaseDelay is the initial delay between retry attempts.
	BaseDelay time.Duration
	// MaxDelay caps the delay between retry attempts.
	MaxDelay time.Duration
	// Multiplier is the backoff factor applied after each attempt.
	Multiplier float64
	// Jitter is the randomization factor (0.0 to 1.0) added to delays.
	Jitter float64
	// RetryOn overrides the default set of retryable status codes.
	RetryOn []int
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.2,
	}
}

// retryableStatus reports whether a status code should trigger a retry.
// Signature and authorization failures are final; only transient server
// conditions are retried.
func retryableStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ShouldRetry determines if a request should be retried.
func (r *RetryConfig) ShouldRetry(attempt, statusCode int) bool {
	if attempt >= r.MaxRetries {
		return false
	}
	if len(r.RetryOn) > 0 {
		for _, code := range r.RetryOn {
			if code == statusCode {
				return true
			}
		}
		return false
	}
	return retryableStatus(statusCode)
}

// Delay calculates the backoff before the next retry attempt.
func (r *RetryConfig) Delay(attempt int) time.Duration {
	delay := float64(r.BaseDelay) * math.Pow(r.Multiplier, float64(attempt))
	if delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}

	if r.Jitter > 0 {
		jitterAmount := delay * r.Jitter
		delay = delay - jitterAmount + (rand.Float64() * 2 * jitterAmount)
	}

	return time.Duration(delay)
}

// Wait sleeps for the backoff delay or until the context is cancelled.
func (r *RetryConfig) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(r.Delay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
