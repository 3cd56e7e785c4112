package api

import (
	"time"

	"github.com/mohae/deepcopy"
)

// Status represents the lifecycle state of a run.
type Status string

const (
	StatusStart     Status = "start"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"

	// StatusAlert is only ever carried by notifications; runs never enter it.
	StatusAlert Status = "alert"
)

// Terminal reports whether s ends a run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StepResult records one successful node visit. Retries is the retry counter
// observed when the step finally succeeded.
type StepResult struct {
	NodeID    string         `json:"node_id"`
	Outcome   map[string]any `json:"outcome"`
	Condition string         `json:"condition,omitempty"`
	Retries   int            `json:"retries"`
	Timestamp time.Time      `json:"timestamp"`
}

// RunState is the state of a single workflow run.
//
// A RunState is mutated only by the goroutine executing the run. Any other
// reader works on a copy obtained through Clone.
type RunState struct {
	RunID       string         `json:"run_id"`
	WorkflowID  string         `json:"workflow_id"`
	EventType   string         `json:"event_type,omitempty"`
	Status      Status         `json:"status"`
	CurrentNode string         `json:"current_node,omitempty"`
	Data        map[string]any `json:"data"`
	Steps       []StepResult   `json:"steps"`
	Retries     int            `json:"retries"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the run state.
func (r *RunState) Clone() *RunState {
	if r == nil {
		return nil
	}
	return deepcopy.Copy(r).(*RunState)
}

// CloneData returns a deep copy of a data map. A nil map yields an empty map.
func CloneData(data map[string]any) map[string]any {
	if data == nil {
		return make(map[string]any)
	}
	return deepcopy.Copy(data).(map[string]any)
}
