package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/opsflow/pkg/api"
)

func sampleWorkflow(id string) *api.Workflow {
	return &api.Workflow{
		ID: id,
		Nodes: []api.Node{
			{ID: "r", Type: api.NodeReconcileOrders, Label: "Reconcile"},
			{ID: "c", Type: api.NodeRestockCheck},
			{ID: "a", Type: api.NodeAlert, Config: map[string]any{"message": "low stock"}},
		},
		Edges: []api.Edge{
			{From: "r", To: "c"},
			{From: "c", To: "a", Condition: "low_inventory"},
		},
	}
}

// runWorkflowStoreContract exercises the behaviour every backend shares.
func runWorkflowStoreContract(t *testing.T, store WorkflowStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		wf := sampleWorkflow("wf-roundtrip")
		require.NoError(t, store.SaveWorkflow(ctx, wf))

		got, err := store.GetWorkflow(ctx, "wf-roundtrip")
		require.NoError(t, err)
		require.Equal(t, wf.Nodes, got.Nodes)
		require.Equal(t, wf.Edges, got.Edges)
	})

	t.Run("assigns id", func(t *testing.T) {
		wf := sampleWorkflow("")
		require.NoError(t, store.SaveWorkflow(ctx, wf))
		require.NotEmpty(t, wf.ID)

		got, err := store.GetWorkflow(ctx, wf.ID)
		require.NoError(t, err)
		require.Equal(t, wf.ID, got.ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.GetWorkflow(ctx, "does-not-exist")
		if !errors.Is(err, ErrWorkflowNotFound) {
			t.Fatalf("expected ErrWorkflowNotFound, got %v", err)
		}
	})

	t.Run("last writer wins", func(t *testing.T) {
		first := sampleWorkflow("wf-lww")
		require.NoError(t, store.SaveWorkflow(ctx, first))

		second := sampleWorkflow("wf-lww")
		second.Nodes[0].Label = "Reconcile v2"
		require.NoError(t, store.SaveWorkflow(ctx, second))

		got, err := store.GetWorkflow(ctx, "wf-lww")
		require.NoError(t, err)
		require.Equal(t, "Reconcile v2", got.Nodes[0].Label)
	})

	t.Run("rejects invalid graph", func(t *testing.T) {
		wf := sampleWorkflow("wf-invalid")
		wf.Edges = append(wf.Edges, api.Edge{From: "a", To: "missing"})

		err := store.SaveWorkflow(ctx, wf)
		if !errors.Is(err, api.ErrInvalidWorkflow) {
			t.Fatalf("expected ErrInvalidWorkflow, got %v", err)
		}
		_, err = store.GetWorkflow(ctx, "wf-invalid")
		require.ErrorIs(t, err, ErrWorkflowNotFound)
	})

	t.Run("returned value is a copy", func(t *testing.T) {
		require.NoError(t, store.SaveWorkflow(ctx, sampleWorkflow("wf-copy")))

		got, err := store.GetWorkflow(ctx, "wf-copy")
		require.NoError(t, err)
		got.Nodes[0].ID = "mutated"

		again, err := store.GetWorkflow(ctx, "wf-copy")
		require.NoError(t, err)
		require.Equal(t, "r", again.Nodes[0].ID)
	})
}
