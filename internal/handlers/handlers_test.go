package handlers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/opsflow/internal/capability"
	"github.com/petrijr/opsflow/pkg/api"
)

type published struct {
	runID  string
	status api.Status
	data   map[string]any
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []published
}

func (n *recordingNotifier) Publish(ctx context.Context, runID string, status api.Status, data map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, published{runID: runID, status: status, data: data})
}

func (n *recordingNotifier) all() []published {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]published(nil), n.msgs...)
}

func newTestRegistry(t *testing.T, levels map[string]int) (*Registry, *capability.Inventory, *recordingNotifier) {
	t.Helper()
	inv := capability.NewInventory(capability.InventoryOptions{
		Threshold:     10,
		RestockAmount: 100,
		DefaultLevel:  50,
		Levels:        levels,
	})
	notifier := &recordingNotifier{}
	reg := NewDefaultRegistry(Dependencies{
		Orders:    &capability.Orders{},
		Inventory: inv,
		Notifier:  notifier,
	})
	return reg, inv, notifier
}

func TestRegistry_CoversEveryNodeType(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil)
	for _, nt := range api.NodeTypes() {
		if _, ok := reg.Lookup(nt); !ok {
			t.Fatalf("no handler for %q", nt)
		}
	}
}

func TestRegistry_UnknownType(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := reg.Dispatch(context.Background(), api.Request{Node: api.Node{ID: "x", Type: "restocke_check"}})

	var herr *api.HandlerError
	require.ErrorAs(t, err, &herr)
	require.Equal(t, "x", herr.NodeID)
	require.ErrorIs(t, err, api.ErrUnknownNodeType)
}

func TestRegistry_WrapsFailuresAndPanics(t *testing.T) {
	reg := NewRegistry(nil)
	boom := errors.New("boom")
	reg.Register(api.NodeReconcileOrders, api.HandlerFunc(func(ctx context.Context, req api.Request) (api.Result, error) {
		return api.Result{}, boom
	}))
	reg.Register(api.NodeAlert, api.HandlerFunc(func(ctx context.Context, req api.Request) (api.Result, error) {
		panic("handler exploded")
	}))

	_, err := reg.Dispatch(context.Background(), api.Request{Node: api.Node{ID: "r", Type: api.NodeReconcileOrders}})
	var herr *api.HandlerError
	require.ErrorAs(t, err, &herr)
	require.ErrorIs(t, err, boom)
	require.Equal(t, api.NodeReconcileOrders, herr.NodeType)

	_, err = reg.Dispatch(context.Background(), api.Request{Node: api.Node{ID: "a", Type: api.NodeAlert}})
	require.ErrorAs(t, err, &herr)
	require.Contains(t, err.Error(), "handler exploded")
}

func TestReconcileHandler_FromJSONShapedData(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil)

	// Event data decoded from JSON carries float64 quantities.
	data := map[string]any{
		"items": []any{
			map[string]any{"sku": "SKU1", "qty": float64(5)},
			map[string]any{"sku": "SKU2", "qty": float64(2)},
		},
	}
	res, err := reg.Dispatch(context.Background(), api.Request{
		Node: api.Node{ID: "r", Type: api.NodeReconcileOrders},
		Data: data,
	})
	require.NoError(t, err)
	require.Equal(t, "reconciled", res.Output["status"])
	require.Equal(t, 7, res.Output["total"])
	require.Equal(t, map[string]any{"SKU1": 5, "SKU2": 2}, res.Output["sku_summary"])
	require.Empty(t, res.Condition)
}

func TestRestockHandler_LowInventory(t *testing.T) {
	reg, inv, _ := newTestRegistry(t, map[string]int{"SKU1": 12})

	res, err := reg.Dispatch(context.Background(), api.Request{
		RunID: "run-1",
		Node:  api.Node{ID: "c", Type: api.NodeRestockCheck},
		Data:  map[string]any{"sku_summary": map[string]any{"SKU1": 5}},
	})
	require.NoError(t, err)
	require.Equal(t, LabelLowInventory, res.Condition)
	require.Equal(t, []any{"SKU1"}, res.Output["low_skus"])

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, reg.Wait(ctx))
	require.Equal(t, 107, inv.Level("SKU1"))
}

func TestRestockHandler_OKAndNoAutoRestock(t *testing.T) {
	reg, inv, _ := newTestRegistry(t, map[string]int{"SKU1": 12, "SKU2": 100})

	res, err := reg.Dispatch(context.Background(), api.Request{
		Node: api.Node{ID: "c", Type: api.NodeRestockCheck},
		Data: map[string]any{"sku_summary": map[string]any{"SKU2": 1}},
	})
	require.NoError(t, err)
	require.Equal(t, LabelOK, res.Condition)
	require.Equal(t, []any{}, res.Output["low_skus"])

	res, err = reg.Dispatch(context.Background(), api.Request{
		Node: api.Node{ID: "c", Type: api.NodeRestockCheck, Config: map[string]any{"auto_restock": false}},
		Data: map[string]any{"sku_summary": map[string]any{"SKU1": 5}},
	})
	require.NoError(t, err)
	require.Equal(t, LabelLowInventory, res.Condition)
	require.NoError(t, reg.Wait(context.Background()))
	require.Equal(t, 7, inv.Level("SKU1"))
}

func TestDecisionHandler(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil)
	node := api.Node{ID: "d", Type: api.NodeDecision, Config: map[string]any{
		"expression":  "data.total > 10",
		"true_label":  "large",
		"false_label": "small",
	}}

	res, err := reg.Dispatch(context.Background(), api.Request{Node: node, Data: map[string]any{"total": 25}})
	require.NoError(t, err)
	require.Equal(t, "large", res.Condition)
	require.Nil(t, res.Output)

	res, err = reg.Dispatch(context.Background(), api.Request{Node: node, Data: map[string]any{"total": 3}})
	require.NoError(t, err)
	require.Equal(t, "small", res.Condition)

	labelNode := api.Node{ID: "d2", Type: api.NodeDecision, Config: map[string]any{
		"expression": `size(data.low_skus) > 0 ? "low_inventory" : "ok"`,
	}}
	res, err = reg.Dispatch(context.Background(), api.Request{Node: labelNode, Data: map[string]any{"low_skus": []any{"SKU1"}}})
	require.NoError(t, err)
	require.Equal(t, "low_inventory", res.Condition)
}

func TestDecisionHandler_EvaluationErrorIsHandlerError(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil)
	node := api.Node{ID: "d", Type: api.NodeDecision, Config: map[string]any{"expression": "data.missing > 1"}}

	_, err := reg.Dispatch(context.Background(), api.Request{Node: node, Data: map[string]any{}})
	var herr *api.HandlerError
	require.ErrorAs(t, err, &herr)
}

func TestRegistry_ValidateCompilesDecisions(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil)
	wf := &api.Workflow{
		ID: "wf",
		Nodes: []api.Node{
			{ID: "d", Type: api.NodeDecision, Config: map[string]any{"expression": "data.total >"}},
		},
	}
	err := reg.Validate(wf)
	require.ErrorIs(t, err, api.ErrInvalidWorkflow)

	wf.Nodes[0].Config["expression"] = "data.total > 1"
	require.NoError(t, reg.Validate(wf))

	delete(wf.Nodes[0].Config, "expression")
	require.ErrorIs(t, reg.Validate(wf), api.ErrInvalidWorkflow)
}

func TestAlertHandler_PublishesAlert(t *testing.T) {
	reg, _, notifier := newTestRegistry(t, nil)

	res, err := reg.Dispatch(context.Background(), api.Request{
		RunID: "run-1",
		Node:  api.Node{ID: "a", Type: api.NodeAlert, Config: map[string]any{"message": "restock soon"}},
		Data:  map[string]any{"low_skus": []any{"SKU1"}, "total": 5},
	})
	require.NoError(t, err)
	require.Empty(t, res.Output)

	msgs := notifier.all()
	require.Len(t, msgs, 1)
	require.Equal(t, "run-1", msgs[0].runID)
	require.Equal(t, api.StatusAlert, msgs[0].status)
	require.Equal(t, map[string]any{
		"low_skus": []any{"SKU1"},
		"message":  "restock soon",
		"node_id":  "a",
	}, msgs[0].data)
}

func parallelWorkflow(failFast bool) *api.Workflow {
	return &api.Workflow{
		ID: "wf-par",
		Nodes: []api.Node{
			{ID: "p", Type: api.NodeParallel, Config: map[string]any{
				"branches":  []any{"b1", "b2"},
				"fail_fast": failFast,
			}},
			{ID: "b1", Type: api.NodeReconcileOrders},
			{ID: "b2", Type: api.NodeRestockCheck},
		},
	}
}

func TestParallelHandler_MergesOutputs(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(api.NodeParallel, NewParallelHandler(reg))

	var running atomic.Int32
	both := make(chan struct{})
	branch := func(key string) api.Handler {
		return api.HandlerFunc(func(ctx context.Context, req api.Request) (api.Result, error) {
			if running.Add(1) == 2 {
				close(both)
			}
			// Each branch waits for the other, proving they run concurrently.
			select {
			case <-both:
			case <-time.After(2 * time.Second):
				return api.Result{}, errors.New("branches did not overlap")
			}
			req.Data["shared"] = key
			return api.Result{Output: map[string]any{key: true, "last": key}}, nil
		})
	}
	reg.Register(api.NodeReconcileOrders, branch("b1"))
	reg.Register(api.NodeRestockCheck, branch("b2"))

	wf := parallelWorkflow(true)
	p, _ := wf.Node("p")
	data := map[string]any{"seed": 1}
	res, err := reg.Dispatch(context.Background(), api.Request{Workflow: wf, Node: p, Data: data})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"b1": true, "b2": true, "last": "b2"}, res.Output)
	require.NotContains(t, data, "shared")
	require.Len(t, res.Branches, 2)
	require.Equal(t, "b1", res.Branches[0].NodeID)
	require.Equal(t, map[string]any{"b1": true, "last": "b1"}, res.Branches[0].Output)
	require.Equal(t, "b2", res.Branches[1].NodeID)
}

func TestParallelHandler_FailFastCancelsSiblings(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(api.NodeParallel, NewParallelHandler(reg))

	boom := errors.New("reconcile down")
	reg.Register(api.NodeReconcileOrders, api.HandlerFunc(func(ctx context.Context, req api.Request) (api.Result, error) {
		return api.Result{}, boom
	}))
	reg.Register(api.NodeRestockCheck, api.HandlerFunc(func(ctx context.Context, req api.Request) (api.Result, error) {
		<-ctx.Done()
		return api.Result{}, ctx.Err()
	}))

	wf := parallelWorkflow(true)
	p, _ := wf.Node("p")
	_, err := reg.Dispatch(context.Background(), api.Request{Workflow: wf, Node: p, Data: map[string]any{}})
	require.ErrorIs(t, err, boom)
}

func TestParallelHandler_WaitAllJoinsErrors(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(api.NodeParallel, NewParallelHandler(reg))

	errA := errors.New("a failed")
	var bRan atomic.Bool
	reg.Register(api.NodeReconcileOrders, api.HandlerFunc(func(ctx context.Context, req api.Request) (api.Result, error) {
		return api.Result{}, errA
	}))
	reg.Register(api.NodeRestockCheck, api.HandlerFunc(func(ctx context.Context, req api.Request) (api.Result, error) {
		time.Sleep(10 * time.Millisecond)
		if ctx.Err() != nil {
			return api.Result{}, ctx.Err()
		}
		bRan.Store(true)
		return api.Result{Output: map[string]any{"b": 1}}, nil
	}))

	wf := parallelWorkflow(false)
	p, _ := wf.Node("p")
	_, err := reg.Dispatch(context.Background(), api.Request{Workflow: wf, Node: p, Data: map[string]any{}})
	require.ErrorIs(t, err, errA)
	require.True(t, bRan.Load())
}
