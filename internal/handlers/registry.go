// Package handlers maps node types to the capabilities that execute them.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/petrijr/opsflow/pkg/api"
)

// Dependencies are the external capabilities the built-in handlers call.
type Dependencies struct {
	Orders    api.OrderReconciler
	Inventory api.Inventory
	Notifier  api.Notifier
	Logger    *slog.Logger
}

// Registry maps node types to handlers. It is safe for concurrent use; the
// handler set is normally fixed after construction.
type Registry struct {
	mu       sync.RWMutex
	handlers map[api.NodeType]api.Handler
	logger   *slog.Logger

	restock *RestockHandler
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[api.NodeType]api.Handler),
		logger:   logger,
	}
}

// NewDefaultRegistry returns a registry with a handler for every node type
// in api.NodeTypes.
func NewDefaultRegistry(deps Dependencies) *Registry {
	if deps.Notifier == nil {
		deps.Notifier = api.NoopNotifier{}
	}
	r := NewRegistry(deps.Logger)

	r.restock = NewRestockHandler(deps.Inventory, r.logger)

	r.Register(api.NodeReconcileOrders, NewReconcileHandler(deps.Orders))
	r.Register(api.NodeRestockCheck, r.restock)
	r.Register(api.NodeDecision, NewDecisionHandler())
	r.Register(api.NodeAlert, NewAlertHandler(deps.Notifier))
	r.Register(api.NodeParallel, NewParallelHandler(r))

	for _, t := range api.NodeTypes() {
		if _, ok := r.Lookup(t); !ok {
			panic(fmt.Sprintf("handlers: no handler registered for node type %q", t))
		}
	}
	return r
}

// Register installs h for node type t, replacing any previous handler.
func (r *Registry) Register(t api.NodeType, h api.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = h
}

// Lookup returns the handler for t.
func (r *Registry) Lookup(t api.NodeType) (api.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	return h, ok
}

// Dispatch executes req.Node with the handler registered for its type.
// Every failure, including a panic inside the handler, is returned as a
// *api.HandlerError.
func (r *Registry) Dispatch(ctx context.Context, req api.Request) (res api.Result, err error) {
	node := req.Node

	h, ok := r.Lookup(node.Type)
	if !ok {
		return api.Result{}, &api.HandlerError{NodeID: node.ID, NodeType: node.Type, Err: api.ErrUnknownNodeType}
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(ctx, "handler_panic",
				slog.String("run_id", req.RunID),
				slog.String("node", node.ID),
				slog.Any("panic", p),
			)
			res = api.Result{}
			err = &api.HandlerError{NodeID: node.ID, NodeType: node.Type, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	res, err = h.Handle(ctx, req)
	if err != nil {
		return api.Result{}, &api.HandlerError{NodeID: node.ID, NodeType: node.Type, Err: err}
	}
	return res, nil
}

// Validate runs the structural graph checks and then lets each node's
// handler check its configuration.
func (r *Registry) Validate(wf *api.Workflow) error {
	if err := wf.Validate(); err != nil {
		return err
	}

	var errs []error
	for _, n := range wf.Nodes {
		h, ok := r.Lookup(n.Type)
		if !ok {
			errs = append(errs, fmt.Errorf("node %q: %w: %q", n.ID, api.ErrUnknownNodeType, n.Type))
			continue
		}
		if v, ok := h.(api.NodeValidator); ok {
			if err := v.ValidateNode(n); err != nil {
				errs = append(errs, fmt.Errorf("node %q: %w", n.ID, err))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", api.ErrInvalidWorkflow, errors.Join(errs...))
	}
	return nil
}

// Wait blocks until background side effects started by handlers (restocks)
// have finished or ctx is done.
func (r *Registry) Wait(ctx context.Context) error {
	if r.restock == nil {
		return nil
	}
	return r.restock.Wait(ctx)
}
