package engine

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/petrijr/opsflow/pkg/api"
)

// RunRegistry is the in-memory table of runs keyed by run id.
//
// It holds snapshots: the goroutine that owns a run publishes a copy after
// every transition, and readers get copies back. No reader ever touches the
// live RunState. Terminal runs stay visible for the retention window and are
// then evicted.
type RunRegistry struct {
	mu        sync.RWMutex
	runs      map[string]*runEntry
	retention time.Duration
}

type runEntry struct {
	state *api.RunState
	evict *time.Timer
}

// NewRunRegistry creates a registry that keeps terminal runs for retention.
// A zero retention evicts them immediately.
func NewRunRegistry(retention time.Duration) *RunRegistry {
	return &RunRegistry{
		runs:      make(map[string]*runEntry),
		retention: retention,
	}
}

// Insert registers a new run. It fails if the id is already in use.
func (r *RunRegistry) Insert(run *api.RunState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.RunID]; exists {
		return fmt.Errorf("run %q already registered", run.RunID)
	}
	r.runs[run.RunID] = &runEntry{state: run.Clone()}
	return nil
}

// Update replaces the snapshot of a registered run.
func (r *RunRegistry) Update(run *api.RunState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.runs[run.RunID]
	if !ok {
		return api.ErrRunNotFound
	}
	e.state = run.Clone()
	return nil
}

// Finish records the terminal snapshot of a run and schedules its eviction.
func (r *RunRegistry) Finish(run *api.RunState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.runs[run.RunID]
	if !ok {
		return api.ErrRunNotFound
	}
	if r.retention <= 0 {
		delete(r.runs, run.RunID)
		return nil
	}

	e.state = run.Clone()
	if e.evict != nil {
		e.evict.Stop()
	}
	id := run.RunID
	e.evict = time.AfterFunc(r.retention, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur, ok := r.runs[id]; ok && cur == e {
			delete(r.runs, id)
		}
	})
	return nil
}

// Get returns a copy of the latest snapshot of a run.
func (r *RunRegistry) Get(id string) (*api.RunState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.runs[id]
	if !ok {
		return nil, api.ErrRunNotFound
	}
	return e.state.Clone(), nil
}

// List returns copies of all known runs, oldest first. An empty status
// matches every run.
func (r *RunRegistry) List(status api.Status) []*api.RunState {
	r.mu.RLock()
	out := make([]*api.RunState, 0, len(r.runs))
	for _, e := range r.runs {
		if status != "" && e.state.Status != status {
			continue
		}
		out = append(out, e.state.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *api.RunState) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.RunID, b.RunID)
	})
	return out
}

// Len returns the number of runs currently held.
func (r *RunRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}
