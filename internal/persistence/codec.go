package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/petrijr/opsflow/pkg/api"
)

// EncodeWorkflow serializes a workflow into its persisted record form.
func EncodeWorkflow(wf *api.Workflow) ([]byte, error) {
	b, err := json.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("encode workflow %q: %w", wf.ID, err)
	}
	return b, nil
}

// DecodeWorkflow parses a persisted workflow record.
func DecodeWorkflow(data []byte) (*api.Workflow, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decode workflow: empty record")
	}
	var wf api.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}
	return &wf, nil
}
