package engine

import (
	"math"
	"time"
)

// RetryPolicy describes how a failed node is retried.
//
// After the n-th consecutive failure of a node (n starting at 1) the engine
// waits Unit * Multiplier^n before dispatching the same node again, so the
// default policy waits 2, 4 and 8 units. Once MaxRetries retries have been
// used the run fails.
type RetryPolicy struct {
	MaxRetries int
	Unit       time.Duration
	Multiplier float64

	// MaxDelay caps a single delay; zero means no cap.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns three retries with delays of 2s, 4s and 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		Unit:       time.Second,
		Multiplier: 2,
	}
}

// Delay returns the wait before the retry numbered retries (1-based).
func (p RetryPolicy) Delay(retries int) time.Duration {
	if retries <= 0 || p.Unit <= 0 {
		return 0
	}
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}

	delay := time.Duration(float64(p.Unit) * math.Pow(multiplier, float64(retries)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// CanRetry reports whether another retry is allowed after retries have
// already been used.
func (p RetryPolicy) CanRetry(retries int) bool {
	return retries < p.MaxRetries
}
