package handlers

import (
	"context"
	"errors"
	"maps"

	"golang.org/x/sync/errgroup"

	"github.com/petrijr/opsflow/pkg/api"
)

// ParallelHandler runs the nodes listed in config "branches" concurrently
// and merges their outputs, in branch order, into a single result.
//
// With fail_fast (the default) the first branch failure cancels the others
// and is returned. With fail_fast=false every branch runs to completion and
// all failures are returned joined. Branch visits are reported in
// Result.Branches; their condition labels do not steer the run, edge
// resolution continues from the parallel node itself.
type ParallelHandler struct {
	registry *Registry
}

func NewParallelHandler(registry *Registry) *ParallelHandler {
	return &ParallelHandler{registry: registry}
}

func (h *ParallelHandler) Handle(ctx context.Context, req api.Request) (api.Result, error) {
	branches := api.ParallelBranches(req.Node)
	if len(branches) == 0 {
		return api.Result{}, errors.New("parallel node has no branches")
	}

	nodes := make([]api.Node, len(branches))
	for i, id := range branches {
		n, ok := req.Workflow.Node(id)
		if !ok {
			return api.Result{}, &api.GraphError{NodeID: id, Reason: "parallel branch not found"}
		}
		if n.Type == api.NodeParallel {
			return api.Result{}, &api.GraphError{NodeID: id, Reason: "nested parallel branch"}
		}
		nodes[i] = n
	}

	results := make([]api.Result, len(nodes))
	run := func(ctx context.Context, i int) error {
		child := req
		child.Node = nodes[i]
		// Branches must not observe each other's view of the data.
		child.Data = api.CloneData(req.Data)

		res, err := h.registry.Dispatch(ctx, child)
		if err != nil {
			return err
		}
		results[i] = res
		return nil
	}

	if configBool(req.Node.Config, "fail_fast", true) {
		g, gctx := errgroup.WithContext(ctx)
		for i := range nodes {
			g.Go(func() error { return run(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return api.Result{}, err
		}
	} else {
		errs := make([]error, len(nodes))
		var g errgroup.Group
		for i := range nodes {
			g.Go(func() error {
				errs[i] = run(ctx, i)
				return nil
			})
		}
		_ = g.Wait()
		if err := errors.Join(errs...); err != nil {
			return api.Result{}, err
		}
	}

	merged := make(map[string]any)
	visits := make([]api.BranchResult, len(nodes))
	for i, res := range results {
		maps.Copy(merged, res.Output)
		visits[i] = api.BranchResult{NodeID: nodes[i].ID, Output: res.Output, Condition: res.Condition}
	}
	return api.Result{Output: merged, Branches: visits}, nil
}
