package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrSupervisorClosed is returned by Spawn after Wait has been called.
var ErrSupervisorClosed = errors.New("engine: supervisor closed")

// Supervisor tracks run goroutines so the process can report and await
// outstanding runs on shutdown instead of leaking them.
//
// Runs are started on the supervisor's own base context, not the caller's:
// an ingestion loop stopping must not abort runs it already spawned.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	outstanding atomic.Int64
}

// NewSupervisor creates a supervisor whose runs inherit values, but not
// cancellation, from parent.
func NewSupervisor(parent context.Context) *Supervisor {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &Supervisor{ctx: ctx, cancel: cancel}
}

// Spawn starts fn in a tracked goroutine.
func (s *Supervisor) Spawn(fn func(ctx context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSupervisorClosed
	}

	s.wg.Add(1)
	s.outstanding.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.outstanding.Add(-1)
		fn(s.ctx)
	}()
	return nil
}

// Outstanding reports how many spawned runs have not finished yet.
func (s *Supervisor) Outstanding() int {
	return int(s.outstanding.Load())
}

// Wait stops accepting new runs and blocks until every spawned run has
// finished. If ctx ends first, the remaining runs are cancelled and Wait
// still waits for them to return before reporting ctx's error.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}
