package persistence

import (
	"context"
	"sync"

	"github.com/petrijr/opsflow/pkg/api"
)

// InMemoryStore is a simple, goroutine-safe WorkflowStore backed by a map.
//
// Records are kept in encoded form so callers never share memory with the
// store.
type InMemoryStore struct {
	mu        sync.RWMutex
	workflows map[string][]byte
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		workflows: make(map[string][]byte),
	}
}

var _ WorkflowStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) SaveWorkflow(ctx context.Context, wf *api.Workflow) error {
	data, err := prepareWorkflow(wf)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflows[WorkflowKey(wf.ID)] = data
	return nil
}

func (s *InMemoryStore) GetWorkflow(ctx context.Context, id string) (*api.Workflow, error) {
	s.mu.RLock()
	data, ok := s.workflows[WorkflowKey(id)]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrWorkflowNotFound
	}
	return DecodeWorkflow(data)
}
