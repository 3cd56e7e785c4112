package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/petrijr/opsflow/pkg/api"
)

// ReconcileHandler executes reconcile_orders nodes.
//
// It reads order lines from data["items"] (or the key named by the node's
// "items_key" config) and outputs status, total and sku_summary.
type ReconcileHandler struct {
	orders api.OrderReconciler
}

func NewReconcileHandler(orders api.OrderReconciler) *ReconcileHandler {
	return &ReconcileHandler{orders: orders}
}

func (h *ReconcileHandler) Handle(ctx context.Context, req api.Request) (api.Result, error) {
	if h.orders == nil {
		return api.Result{}, errors.New("no order reconciliation capability configured")
	}

	key := configString(req.Node.Config, "items_key", "items")
	var items []api.OrderItem
	if raw, ok := req.Data[key]; ok {
		if err := decodeInto(raw, &items); err != nil {
			return api.Result{}, fmt.Errorf("order items: %w", err)
		}
	}

	rec, err := h.orders.Reconcile(ctx, items)
	if err != nil {
		return api.Result{}, err
	}

	summary := make(map[string]any, len(rec.SKUSummary))
	for sku, qty := range rec.SKUSummary {
		summary[sku] = qty
	}
	return api.Result{
		Output: map[string]any{
			"status":      rec.Status,
			"total":       rec.Total,
			"sku_summary": summary,
		},
	}, nil
}
