package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/petrijr/opsflow/pkg/api"
)

func newRun(id string, started time.Time) *api.RunState {
	return &api.RunState{
		RunID:     id,
		Status:    api.StatusRunning,
		Data:      map[string]any{"k": "v"},
		StartedAt: started,
	}
}

func TestRunRegistry_InsertGetIsolation(t *testing.T) {
	reg := NewRunRegistry(time.Minute)
	run := newRun("r1", time.Now())

	if err := reg.Insert(run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := reg.Insert(run); err == nil {
		t.Fatalf("expected duplicate insert to fail")
	}

	// Mutating the owner's copy does not leak into the registry.
	run.Data["k"] = "changed"

	got, err := reg.Get("r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Data["k"] != "v" {
		t.Fatalf("registry shares memory with the run: %v", got.Data)
	}

	got.Data["k"] = "reader"
	again, _ := reg.Get("r1")
	if again.Data["k"] != "v" {
		t.Fatalf("reader mutation leaked: %v", again.Data)
	}
}

func TestRunRegistry_UpdateUnknown(t *testing.T) {
	reg := NewRunRegistry(time.Minute)
	if err := reg.Update(newRun("missing", time.Now())); !errors.Is(err, api.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := reg.Get("missing"); !errors.Is(err, api.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRunRegistry_FinishEvictsAfterRetention(t *testing.T) {
	reg := NewRunRegistry(30 * time.Millisecond)
	run := newRun("r1", time.Now())
	_ = reg.Insert(run)

	run.Status = api.StatusCompleted
	if err := reg.Finish(run); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	got, err := reg.Get("r1")
	if err != nil || got.Status != api.StatusCompleted {
		t.Fatalf("expected completed run within retention, got %v %v", got, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for reg.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("run not evicted after retention")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunRegistry_ZeroRetentionEvictsImmediately(t *testing.T) {
	reg := NewRunRegistry(0)
	run := newRun("r1", time.Now())
	_ = reg.Insert(run)
	_ = reg.Finish(run)

	if reg.Len() != 0 {
		t.Fatalf("expected immediate eviction, len=%d", reg.Len())
	}
}

func TestRunRegistry_ListOrderAndFilter(t *testing.T) {
	reg := NewRunRegistry(time.Minute)
	base := time.Now()

	_ = reg.Insert(newRun("late", base.Add(2*time.Second)))
	_ = reg.Insert(newRun("early", base))
	done := newRun("mid", base.Add(time.Second))
	_ = reg.Insert(done)
	done.Status = api.StatusCompleted
	_ = reg.Finish(done)

	all := reg.List("")
	if len(all) != 3 || all[0].RunID != "early" || all[1].RunID != "mid" || all[2].RunID != "late" {
		t.Fatalf("unexpected order: %v", ids(all))
	}

	running := reg.List(api.StatusRunning)
	if len(running) != 2 {
		t.Fatalf("expected 2 running, got %v", ids(running))
	}
}

func ids(runs []*api.RunState) []string {
	out := make([]string, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.RunID)
	}
	return out
}
