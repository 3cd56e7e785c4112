package api

import (
	"errors"
	"testing"
)

func inventoryWorkflow() *Workflow {
	return &Workflow{
		ID: "wf-inventory",
		Nodes: []Node{
			{ID: "reconcile", Type: NodeReconcileOrders},
			{ID: "check", Type: NodeRestockCheck},
			{ID: "alert", Type: NodeAlert, Config: map[string]any{"message": "low stock"}},
		},
		Edges: []Edge{
			{From: "reconcile", To: "check"},
			{From: "check", To: "alert", Condition: "low_inventory"},
		},
	}
}

func TestWorkflowValidateAcceptsInventoryGraph(t *testing.T) {
	if err := inventoryWorkflow().Validate(); err != nil {
		t.Fatalf("expected valid workflow, got %v", err)
	}
}

func TestWorkflowValidateRejections(t *testing.T) {
	cases := map[string]func(w *Workflow){
		"missing node id":      func(w *Workflow) { w.Nodes[0].ID = "" },
		"missing node type":    func(w *Workflow) { w.Nodes[0].Type = "" },
		"unknown node type":    func(w *Workflow) { w.Nodes[1].Type = "send_email" },
		"duplicate node id":    func(w *Workflow) { w.Nodes[2].ID = "check" },
		"edge to unknown":      func(w *Workflow) { w.Edges[0].To = "ghost" },
		"edge from unknown":    func(w *Workflow) { w.Edges[1].From = "ghost" },
		"bad entry":            func(w *Workflow) { w.Entry = "ghost" },
		"two fallbacks":        func(w *Workflow) { w.Edges = append(w.Edges, Edge{From: "reconcile", To: "alert"}) },
		"parallel no branches": func(w *Workflow) { w.Nodes = append(w.Nodes, Node{ID: "fan", Type: NodeParallel}) },
		"parallel unknown branch": func(w *Workflow) {
			w.Nodes = append(w.Nodes, Node{ID: "fan", Type: NodeParallel, Config: map[string]any{"branches": []any{"ghost"}}})
		},
		"nested parallel": func(w *Workflow) {
			w.Nodes = append(w.Nodes,
				Node{ID: "outer", Type: NodeParallel, Config: map[string]any{"branches": []any{"inner"}}},
				Node{ID: "inner", Type: NodeParallel, Config: map[string]any{"branches": []any{"alert"}}},
			)
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			w := inventoryWorkflow()
			mutate(w)
			if err := w.Validate(); !errors.Is(err, ErrInvalidWorkflow) {
				t.Fatalf("expected ErrInvalidWorkflow, got %v", err)
			}
		})
	}
}

func TestWorkflowValidateUnknownTypeWrapsSentinel(t *testing.T) {
	w := inventoryWorkflow()
	w.Nodes[0].Type = "bogus"
	if err := w.Validate(); !errors.Is(err, ErrUnknownNodeType) {
		t.Fatalf("expected ErrUnknownNodeType in chain, got %v", err)
	}
}

func TestWorkflowStartNode(t *testing.T) {
	w := inventoryWorkflow()
	if got := w.StartNode(); got != "reconcile" {
		t.Fatalf("expected reconcile, got %q", got)
	}

	w.Entry = "check"
	if got := w.StartNode(); got != "check" {
		t.Fatalf("explicit entry ignored, got %q", got)
	}

	// Parallel branches are never start candidates.
	fan := &Workflow{
		Nodes: []Node{
			{ID: "a", Type: NodeAlert},
			{ID: "fan", Type: NodeParallel, Config: map[string]any{"branches": []string{"a"}}},
		},
	}
	if got := fan.StartNode(); got != "fan" {
		t.Fatalf("expected fan, got %q", got)
	}

	// A pure cycle falls back to the first declared node.
	cycle := &Workflow{
		Nodes: []Node{{ID: "x", Type: NodeAlert}, {ID: "y", Type: NodeAlert}},
		Edges: []Edge{{From: "x", To: "y"}, {From: "y", To: "x"}},
	}
	if got := cycle.StartNode(); got != "x" {
		t.Fatalf("expected x, got %q", got)
	}

	if got := (&Workflow{}).StartNode(); got != "" {
		t.Fatalf("expected empty start for empty workflow, got %q", got)
	}
}

func TestWorkflowOutgoingEdgesKeepsOrder(t *testing.T) {
	w := &Workflow{
		Edges: []Edge{
			{From: "d", To: "x", Condition: "true"},
			{From: "other", To: "x"},
			{From: "d", To: "y", Condition: "false"},
			{From: "d", To: "z"},
		},
	}
	edges := w.OutgoingEdges("d")
	if len(edges) != 3 || edges[0].To != "x" || edges[1].To != "y" || edges[2].To != "z" {
		t.Fatalf("unexpected edges %+v", edges)
	}
}

func TestParallelBranchesAcceptsBothSliceKinds(t *testing.T) {
	n := Node{Config: map[string]any{"branches": []any{"a", 3, "b"}}}
	got := ParallelBranches(n)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected branches %v", got)
	}

	n = Node{Config: map[string]any{"branches": []string{"c"}}}
	if got := ParallelBranches(n); len(got) != 1 || got[0] != "c" {
		t.Fatalf("unexpected branches %v", got)
	}

	if got := ParallelBranches(Node{}); got != nil {
		t.Fatalf("expected nil for missing branches, got %v", got)
	}
}

func TestWorkflowCloneIsDeep(t *testing.T) {
	w := inventoryWorkflow()
	c := w.Clone()

	c.Nodes[2].Config["message"] = "changed"
	c.Edges[0].To = "alert"

	if w.Nodes[2].Config["message"] != "low stock" {
		t.Fatalf("clone shares node config")
	}
	if w.Edges[0].To != "check" {
		t.Fatalf("clone shares edges")
	}
	if (*Workflow)(nil).Clone() != nil {
		t.Fatalf("nil clone should be nil")
	}
}
