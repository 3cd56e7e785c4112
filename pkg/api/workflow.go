package api

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mohae/deepcopy"
)

// NodeType identifies which Handler executes a node.
type NodeType string

const (
	NodeReconcileOrders NodeType = "reconcile_orders"
	NodeRestockCheck    NodeType = "restock_check"
	NodeDecision        NodeType = "decision"
	NodeAlert           NodeType = "alert"
	NodeParallel        NodeType = "parallel"
)

// NodeTypes lists every supported node type in a stable order.
func NodeTypes() []NodeType {
	return []NodeType{
		NodeReconcileOrders,
		NodeRestockCheck,
		NodeDecision,
		NodeAlert,
		NodeParallel,
	}
}

// Valid reports whether t is one of the supported node types.
func (t NodeType) Valid() bool {
	for _, known := range NodeTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Node is a single vertex of a workflow graph.
type Node struct {
	ID     string         `json:"id" yaml:"id" validate:"required"`
	Type   NodeType       `json:"type" yaml:"type" validate:"required"`
	Label  string         `json:"label,omitempty" yaml:"label,omitempty"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Edge connects two nodes. An empty Condition marks the unconditional
// (fallback) edge.
type Edge struct {
	From      string `json:"from" yaml:"from" validate:"required"`
	To        string `json:"to" yaml:"to" validate:"required"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Workflow is a stored workflow graph.
//
// Entry optionally names the start node. When empty, the start node is the
// first declared node without incoming edges that is not a parallel branch.
type Workflow struct {
	ID    string `json:"id" yaml:"id"`
	Entry string `json:"entry,omitempty" yaml:"entry,omitempty"`
	Nodes []Node `json:"nodes" yaml:"nodes" validate:"dive"`
	Edges []Edge `json:"edges" yaml:"edges" validate:"dive"`
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Node returns the node with the given id.
func (w *Workflow) Node(id string) (Node, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// OutgoingEdges returns the edges leaving the given node in declaration order.
func (w *Workflow) OutgoingEdges(from string) []Edge {
	var out []Edge
	for _, e := range w.Edges {
		if e.From == from {
			out = append(out, e)
		}
	}
	return out
}

// ParallelBranches returns the child node ids configured on a parallel node
// under the "branches" key.
func ParallelBranches(n Node) []string {
	raw, ok := n.Config["branches"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// StartNode resolves the node a run begins at. It returns "" for an empty
// workflow; the engine treats an unknown node as graph exhaustion.
func (w *Workflow) StartNode() string {
	if w.Entry != "" {
		return w.Entry
	}

	incoming := make(map[string]bool, len(w.Edges))
	for _, e := range w.Edges {
		incoming[e.To] = true
	}
	for _, n := range w.Nodes {
		if n.Type != NodeParallel {
			continue
		}
		for _, child := range ParallelBranches(n) {
			incoming[child] = true
		}
	}

	for _, n := range w.Nodes {
		if !incoming[n.ID] {
			return n.ID
		}
	}
	if len(w.Nodes) > 0 {
		return w.Nodes[0].ID
	}
	return ""
}

// Validate checks the structural rules every stored workflow must satisfy.
// Node-type specific configuration is checked by the handler registry.
func (w *Workflow) Validate() error {
	if err := structValidator.Struct(w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}

	nodes := make(map[string]Node, len(w.Nodes))
	for _, n := range w.Nodes {
		if _, dup := nodes[n.ID]; dup {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidWorkflow, n.ID)
		}
		if !n.Type.Valid() {
			return fmt.Errorf("%w: node %q: %w: %q", ErrInvalidWorkflow, n.ID, ErrUnknownNodeType, n.Type)
		}
		nodes[n.ID] = n
	}

	if w.Entry != "" {
		if _, ok := nodes[w.Entry]; !ok {
			return fmt.Errorf("%w: entry node %q does not exist", ErrInvalidWorkflow, w.Entry)
		}
	}

	unconditional := make(map[string]bool)
	for _, e := range w.Edges {
		if _, ok := nodes[e.From]; !ok {
			return fmt.Errorf("%w: edge from unknown node %q", ErrInvalidWorkflow, e.From)
		}
		if _, ok := nodes[e.To]; !ok {
			return fmt.Errorf("%w: edge to unknown node %q", ErrInvalidWorkflow, e.To)
		}
		if e.Condition == "" {
			if unconditional[e.From] {
				return fmt.Errorf("%w: node %q has more than one unconditional edge", ErrInvalidWorkflow, e.From)
			}
			unconditional[e.From] = true
		}
	}

	for _, n := range w.Nodes {
		if n.Type != NodeParallel {
			continue
		}
		branches := ParallelBranches(n)
		if len(branches) == 0 {
			return fmt.Errorf("%w: parallel node %q has no branches", ErrInvalidWorkflow, n.ID)
		}
		for _, id := range branches {
			child, ok := nodes[id]
			if !ok {
				return fmt.Errorf("%w: parallel node %q references unknown branch %q", ErrInvalidWorkflow, n.ID, id)
			}
			if child.Type == NodeParallel {
				return fmt.Errorf("%w: parallel node %q cannot nest parallel branch %q", ErrInvalidWorkflow, n.ID, id)
			}
		}
	}

	return nil
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	return deepcopy.Copy(w).(*Workflow)
}
