package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/petrijr/opsflow/pkg/api"
)

// ErrWorkflowNotFound is returned when a workflow id has no stored graph.
var ErrWorkflowNotFound = api.ErrWorkflowNotFound

// WorkflowStore handles storage of workflow graphs.
//
// Implementations must be safe for concurrent use. Writes to the same id are
// last-writer-wins.
type WorkflowStore interface {
	// SaveWorkflow validates and durably stores wf. If wf.ID is empty a fresh
	// id is assigned to wf before it is written.
	SaveWorkflow(ctx context.Context, wf *api.Workflow) error

	// GetWorkflow returns the workflow stored under id, or ErrWorkflowNotFound.
	// The returned value is owned by the caller.
	GetWorkflow(ctx context.Context, id string) (*api.Workflow, error)
}

// WorkflowKey is the namespaced key a workflow record is stored under.
func WorkflowKey(id string) string {
	return "workflow:" + id
}

// prepareWorkflow assigns an id if needed, validates the graph and encodes it.
func prepareWorkflow(wf *api.Workflow) ([]byte, error) {
	if wf == nil {
		return nil, errors.New("persistence: nil workflow")
	}
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return EncodeWorkflow(wf)
}
