package opsflow

import (
	"testing"
	"time"
)

// Ensure the default builder reproduces the 2, 4, 8 unit schedule.
func TestRetry_DefaultSchedule(t *testing.T) {
	p := Retry(3).Policy()

	if p.MaxRetries != 3 {
		t.Fatalf("expected MaxRetries=3, got %d", p.MaxRetries)
	}
	for i, want := range []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second} {
		if got := p.Delay(i + 1); got != want {
			t.Fatalf("retry %d: expected %v, got %v", i+1, want, got)
		}
	}
	if p.CanRetry(3) {
		t.Fatalf("expected no retry after 3 retries")
	}
}

// Ensure negative maxRetries is normalized to 0.
func TestRetry_NegativeMaxRetriesDefaultsToZero(t *testing.T) {
	p := Retry(-5).Policy()
	if p.MaxRetries != 0 {
		t.Fatalf("expected MaxRetries=0 for Retry(-5), got %d", p.MaxRetries)
	}
	if p.CanRetry(0) {
		t.Fatalf("expected no retries to be allowed")
	}
}

// Ensure WithExponentialBackoff wires fields correctly and default multiplier is applied.
func TestRetry_WithExponentialBackoff_UsesDefaults(t *testing.T) {
	unit := 100 * time.Millisecond
	max := 300 * time.Millisecond

	p := Retry(3).
		WithExponentialBackoff(unit, 0, max).
		Policy()

	if p.Unit != unit {
		t.Fatalf("expected Unit=%v, got %v", unit, p.Unit)
	}
	if p.Multiplier != 2.0 {
		t.Fatalf("expected Multiplier=2.0 (default), got %v", p.Multiplier)
	}
	if got := p.Delay(1); got != 200*time.Millisecond {
		t.Fatalf("expected first delay 200ms, got %v", got)
	}
	if got := p.Delay(3); got != max {
		t.Fatalf("expected delay capped at %v, got %v", max, got)
	}
}

// Ensure WithConstantBackoff sets a fixed delay and uses multiplier 1.0.
func TestRetry_WithConstantBackoff(t *testing.T) {
	delay := 250 * time.Millisecond

	p := Retry(5).
		WithConstantBackoff(delay).
		Policy()

	if p.MaxRetries != 5 {
		t.Fatalf("expected MaxRetries=5, got %d", p.MaxRetries)
	}
	for n := 1; n <= 5; n++ {
		if got := p.Delay(n); got != delay {
			t.Fatalf("retry %d: expected %v, got %v", n, delay, got)
		}
	}
}

// Ensure Immediate clears all backoff timing without changing MaxRetries.
func TestRetry_ImmediateClearsBackoff(t *testing.T) {
	p := Retry(7).
		WithExponentialBackoff(100*time.Millisecond, 2.0, 5*time.Second).
		Immediate().
		Policy()

	if p.MaxRetries != 7 {
		t.Fatalf("expected MaxRetries=7, got %d", p.MaxRetries)
	}
	if p.Unit != 0 || p.MaxDelay != 0 {
		t.Fatalf("expected zero timing after Immediate, got %+v", p)
	}
	if got := p.Delay(2); got != 0 {
		t.Fatalf("expected no delay, got %v", got)
	}
}
