package api

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound is returned when a workflow id has no stored graph.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrRunNotFound is returned when a run id is not in the run registry.
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidWorkflow is returned when a workflow graph fails validation.
	ErrInvalidWorkflow = errors.New("invalid workflow")

	// ErrUnknownNodeType is returned when no handler exists for a node type.
	// The engine does not retry it.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrStepLimitExceeded fails a run that visits more nodes than allowed.
	ErrStepLimitExceeded = errors.New("step limit exceeded")
)

// HandlerError wraps any failure raised while executing a node.
type HandlerError struct {
	NodeID   string
	NodeType NodeType
	Err      error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.NodeType, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// GraphError describes a missing node or an unmatched edge. Runs treat it as
// normal completion; it exists for logging and metrics.
type GraphError struct {
	NodeID string
	Reason string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph: node %q: %s", e.NodeID, e.Reason)
}

// TransportError wraps a publish or subscribe failure on a channel.
type TransportError struct {
	Topic string
	Op    string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Topic, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
