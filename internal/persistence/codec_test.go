package persistence

import (
	"testing"
)

func TestEncodeDecodeWorkflow(t *testing.T) {
	wf := sampleWorkflow("wf-codec")
	wf.Nodes = append(wf.Nodes, wf.Nodes[0])
	wf.Nodes[3].ID = "d"
	wf.Nodes[3].Config = map[string]any{"expression": "data.total > 10"}

	data, err := EncodeWorkflow(wf)
	if err != nil {
		t.Fatalf("EncodeWorkflow failed: %v", err)
	}

	got, err := DecodeWorkflow(data)
	if err != nil {
		t.Fatalf("DecodeWorkflow failed: %v", err)
	}
	if got.ID != wf.ID || len(got.Nodes) != 4 || len(got.Edges) != 2 {
		t.Fatalf("unexpected decoded workflow: %+v", got)
	}
	if got.Nodes[3].Config["expression"] != "data.total > 10" {
		t.Fatalf("expected config to survive, got %v", got.Nodes[3].Config)
	}
	if got.Edges[1].Condition != "low_inventory" {
		t.Fatalf("expected condition low_inventory, got %q", got.Edges[1].Condition)
	}
}

func TestDecodeWorkflow_Empty(t *testing.T) {
	if _, err := DecodeWorkflow(nil); err == nil {
		t.Fatalf("expected error for empty record")
	}
}
