package opsflow

import "time"

// RetryBuilder provides a fluent way to construct RetryPolicy values for
// WithRetryPolicy.
type RetryBuilder struct {
	policy RetryPolicy
}

// Retry creates a RetryBuilder allowing maxRetries retries of a failed node
// with the default exponential backoff (2, 4, 8 ... seconds).
//
// maxRetries < 0 is treated as 0 (fail on first error).
func Retry(maxRetries int) RetryBuilder {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return RetryBuilder{
		policy: RetryPolicy{
			MaxRetries: maxRetries,
			Unit:       time.Second,
			Multiplier: 2,
		},
	}
}

// WithExponentialBackoff configures exponential backoff:
//
//   - unit is multiplied by multiplier^n before the n-th retry.
//   - multiplier defaults to 2.0 if <= 0.
//   - max caps the delay; if <= 0, there is no cap.
//
// Example:
//
//	Retry(3).WithExponentialBackoff(100*time.Millisecond, 2.0, 2*time.Second)
func (r RetryBuilder) WithExponentialBackoff(unit time.Duration, multiplier float64, max time.Duration) RetryBuilder {
	p := r.policy
	p.Unit = unit
	p.MaxDelay = max
	if multiplier <= 0 {
		multiplier = 2.0
	}
	p.Multiplier = multiplier
	return RetryBuilder{policy: p}
}

// WithConstantBackoff waits delay before every retry.
func (r RetryBuilder) WithConstantBackoff(delay time.Duration) RetryBuilder {
	p := r.policy
	p.Unit = delay
	p.MaxDelay = 0
	p.Multiplier = 1.0
	return RetryBuilder{policy: p}
}

// Immediate disables any sleep between retries.
// Retries will still respect MaxRetries.
func (r RetryBuilder) Immediate() RetryBuilder {
	p := r.policy
	p.Unit = 0
	p.MaxDelay = 0
	return RetryBuilder{policy: p}
}

// Policy returns the underlying RetryPolicy.
func (r RetryBuilder) Policy() RetryPolicy {
	return r.policy
}
