package persistence

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/petrijr/opsflow/pkg/api"
)

// CachedWorkflowStore is a read-through LRU cache in front of another
// WorkflowStore. Workflows are read on every event but written rarely, so
// most lookups never reach the backend.
//
// Entries expire after ttl so writes made by other processes sharing the
// backend become visible eventually. A ttl of zero disables expiry.
type CachedWorkflowStore struct {
	inner WorkflowStore
	cache *expirable.LRU[string, *api.Workflow]
}

var _ WorkflowStore = (*CachedWorkflowStore)(nil)

// NewCachedWorkflowStore wraps inner with a cache holding up to size
// workflows.
func NewCachedWorkflowStore(inner WorkflowStore, size int, ttl time.Duration) *CachedWorkflowStore {
	if size <= 0 {
		size = 128
	}
	return &CachedWorkflowStore{
		inner: inner,
		cache: expirable.NewLRU[string, *api.Workflow](size, nil, ttl),
	}
}

func (s *CachedWorkflowStore) SaveWorkflow(ctx context.Context, wf *api.Workflow) error {
	if err := s.inner.SaveWorkflow(ctx, wf); err != nil {
		return err
	}
	s.cache.Add(wf.ID, wf.Clone())
	return nil
}

func (s *CachedWorkflowStore) GetWorkflow(ctx context.Context, id string) (*api.Workflow, error) {
	if wf, ok := s.cache.Get(id); ok {
		return wf.Clone(), nil
	}

	wf, err := s.inner.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, wf.Clone())
	return wf, nil
}

// Len reports the number of cached workflows.
func (s *CachedWorkflowStore) Len() int {
	return s.cache.Len()
}
