package engine

import (
	"testing"
	"time"
)

func TestRetryPolicy_DefaultDelaysDouble(t *testing.T) {
	p := DefaultRetryPolicy()
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Fatalf("retry %d: expected %v, got %v", i+1, w, got)
		}
	}
	if !p.CanRetry(2) || p.CanRetry(3) {
		t.Fatalf("expected exactly 3 retries to be allowed")
	}
}

func TestRetryPolicy_Cap(t *testing.T) {
	p := RetryPolicy{MaxRetries: 10, Unit: time.Second, Multiplier: 2, MaxDelay: 5 * time.Second}
	if got := p.Delay(3); got != 5*time.Second {
		t.Fatalf("expected capped delay, got %v", got)
	}
	if got := p.Delay(0); got != 0 {
		t.Fatalf("expected no delay before the first retry, got %v", got)
	}
}
