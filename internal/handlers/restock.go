package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/petrijr/opsflow/pkg/api"
)

// Condition labels emitted by restock_check.
const (
	LabelLowInventory = "low_inventory"
	LabelOK           = "ok"
)

// RestockHandler executes restock_check nodes.
//
// It reads data["sku_summary"], asks the inventory which SKUs fell below the
// restock threshold and outputs them as low_skus. For every low SKU a restock
// is started in the background unless the node sets auto_restock to false.
type RestockHandler struct {
	inventory api.Inventory
	logger    *slog.Logger

	wg sync.WaitGroup
}

func NewRestockHandler(inventory api.Inventory, logger *slog.Logger) *RestockHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RestockHandler{inventory: inventory, logger: logger}
}

func (h *RestockHandler) Handle(ctx context.Context, req api.Request) (api.Result, error) {
	if h.inventory == nil {
		return api.Result{}, errors.New("no inventory capability configured")
	}

	summary := map[string]int{}
	if raw, ok := req.Data["sku_summary"]; ok {
		if err := decodeInto(raw, &summary); err != nil {
			return api.Result{}, fmt.Errorf("sku summary: %w", err)
		}
	}

	low, err := h.inventory.CheckRestock(ctx, summary)
	if err != nil {
		return api.Result{}, err
	}

	if configBool(req.Node.Config, "auto_restock", true) {
		for _, sku := range low {
			h.restockAsync(ctx, req.RunID, sku)
		}
	}

	lowSKUs := make([]any, 0, len(low))
	for _, sku := range low {
		lowSKUs = append(lowSKUs, sku)
	}

	cond := LabelOK
	if len(low) > 0 {
		cond = LabelLowInventory
	}
	return api.Result{
		Output:    map[string]any{"low_skus": lowSKUs},
		Condition: cond,
	}, nil
}

func (h *RestockHandler) restockAsync(ctx context.Context, runID, sku string) {
	// The restock outlives the step that triggered it.
	ctx = context.WithoutCancel(ctx)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.inventory.Restock(ctx, sku); err != nil {
			h.logger.WarnContext(ctx, "restock_failed",
				slog.String("run_id", runID),
				slog.String("sku", sku),
				slog.Any("error", err),
			)
			return
		}
		h.logger.DebugContext(ctx, "restocked",
			slog.String("run_id", runID),
			slog.String("sku", sku),
		)
	}()
}

// Wait blocks until every background restock has finished or ctx is done.
func (h *RestockHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
