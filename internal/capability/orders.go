// Package capability provides in-process stand-ins for the order
// reconciliation and inventory services the handlers call.
package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petrijr/opsflow/pkg/api"
)

// ErrInvalidOrderLine is returned for an order line without a SKU or with a
// negative quantity.
var ErrInvalidOrderLine = errors.New("invalid order line")

// Orders reconciles order lines by totalling quantities per SKU.
type Orders struct {
	// Latency simulates the round trip to the order service.
	Latency time.Duration
}

var _ api.OrderReconciler = (*Orders)(nil)

func (o *Orders) Reconcile(ctx context.Context, items []api.OrderItem) (api.Reconciliation, error) {
	if o.Latency > 0 {
		select {
		case <-time.After(o.Latency):
		case <-ctx.Done():
			return api.Reconciliation{}, ctx.Err()
		}
	}

	rec := api.Reconciliation{
		Status:     "reconciled",
		SKUSummary: make(map[string]int, len(items)),
	}
	for i, item := range items {
		if item.SKU == "" || item.Qty < 0 {
			return api.Reconciliation{}, fmt.Errorf("%w: line %d: %+v", ErrInvalidOrderLine, i, item)
		}
		rec.Total += item.Qty
		rec.SKUSummary[item.SKU] += item.Qty
	}
	return rec, nil
}
