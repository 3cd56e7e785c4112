package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/opsflow/pkg/api"
)

// RedisWorkflowStore is a WorkflowStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>workflow:<id>  => JSON-encoded workflow
type RedisWorkflowStore struct {
	client redis.UniversalClient
	prefix string
}

var _ WorkflowStore = (*RedisWorkflowStore)(nil)

// NewRedisWorkflowStore creates a RedisWorkflowStore.
// prefix is optional but recommended (e.g. "opsflow:").
func NewRedisWorkflowStore(client redis.UniversalClient, prefix string) *RedisWorkflowStore {
	return &RedisWorkflowStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisWorkflowStore) key(id string) string {
	return s.prefix + WorkflowKey(id)
}

func (s *RedisWorkflowStore) SaveWorkflow(ctx context.Context, wf *api.Workflow) error {
	data, err := prepareWorkflow(wf)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(wf.ID), data, 0).Err()
}

func (s *RedisWorkflowStore) GetWorkflow(ctx context.Context, id string) (*api.Workflow, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrWorkflowNotFound
		}
		return nil, err
	}
	return DecodeWorkflow(data)
}
