package api

import "context"

// Request is the input handed to a Handler for one node visit.
//
// Data is a private copy of the run data; handlers may read it freely but
// changes are discarded. Anything a handler wants to keep goes into
// Result.Output.
type Request struct {
	RunID    string
	Workflow *Workflow
	Node     Node
	Data     map[string]any
}

// Result is what a Handler produced for one node visit.
type Result struct {
	// Output is merged into the run data before edge resolution.
	Output map[string]any

	// Condition, when non-empty, selects the outgoing edge with the same
	// condition label.
	Condition string

	// Branches lists the child visits made by a parallel node, in branch
	// order. Each is recorded as its own step after the parallel node.
	Branches []BranchResult
}

// BranchResult is one child visit made inside a parallel node.
type BranchResult struct {
	NodeID    string
	Output    map[string]any
	Condition string
}

// Handler executes a single node type. Failures are returned, never panicked;
// the registry wraps them in a HandlerError.
type Handler interface {
	Handle(ctx context.Context, req Request) (Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req Request) (Result, error)

// Handle calls f(ctx, req).
func (f HandlerFunc) Handle(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// NodeValidator is implemented by handlers that can check a node's
// configuration before a workflow is stored.
type NodeValidator interface {
	ValidateNode(n Node) error
}

// Reconciliation is the result of reconciling a batch of order lines.
type Reconciliation struct {
	Status     string         `json:"status"`
	Total      int            `json:"total"`
	SKUSummary map[string]int `json:"sku_summary"`
}

// OrderReconciler is the external order reconciliation capability.
type OrderReconciler interface {
	Reconcile(ctx context.Context, items []OrderItem) (Reconciliation, error)
}

// Inventory is the external inventory capability.
type Inventory interface {
	// CheckRestock applies the per-SKU quantities and returns the SKUs that
	// fell below the restock threshold.
	CheckRestock(ctx context.Context, skuSummary map[string]int) ([]string, error)

	// Restock replenishes a single SKU.
	Restock(ctx context.Context, sku string) error
}

// Notifier publishes run status messages to observers of the dashboard
// channel. Delivery is best-effort.
type Notifier interface {
	Publish(ctx context.Context, runID string, status Status, data map[string]any)
}

// NoopNotifier discards every notification.
type NoopNotifier struct{}

func (NoopNotifier) Publish(ctx context.Context, runID string, status Status, data map[string]any) {}
