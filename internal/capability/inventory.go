package capability

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/petrijr/opsflow/pkg/api"
)

// InventoryOptions configures an Inventory.
type InventoryOptions struct {
	// Threshold is the level below which a SKU is reported low.
	Threshold int
	// RestockAmount is added to a SKU's level by Restock.
	RestockAmount int
	// RestockDelay simulates supplier lead time.
	RestockDelay time.Duration
	// DefaultLevel is the level assumed for a SKU seen for the first time.
	DefaultLevel int
	// Levels seeds known stock levels.
	Levels map[string]int
}

// DefaultInventoryOptions returns the stock rules the opsflow binary uses.
func DefaultInventoryOptions() InventoryOptions {
	return InventoryOptions{
		Threshold:     10,
		RestockAmount: 100,
		RestockDelay:  500 * time.Millisecond,
		DefaultLevel:  50,
	}
}

// Inventory is an in-memory stock ledger. It is safe for concurrent use.
type Inventory struct {
	opts InventoryOptions

	mu     sync.Mutex
	levels map[string]int
}

var _ api.Inventory = (*Inventory)(nil)

func NewInventory(opts InventoryOptions) *Inventory {
	levels := make(map[string]int, len(opts.Levels))
	for sku, n := range opts.Levels {
		levels[sku] = n
	}
	return &Inventory{opts: opts, levels: levels}
}

// SeedRandom sets SKU1..SKUn to random levels in [lo, hi].
func (inv *Inventory) SeedRandom(n, lo, hi int) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for i := 1; i <= n; i++ {
		inv.levels[fmt.Sprintf("SKU%d", i)] = lo + rand.IntN(hi-lo+1)
	}
}

// CheckRestock deducts each ordered quantity and reports, in sorted order,
// the SKUs that are now below the threshold.
func (inv *Inventory) CheckRestock(ctx context.Context, skuSummary map[string]int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	low := make([]string, 0)
	for sku, qty := range skuSummary {
		level, ok := inv.levels[sku]
		if !ok {
			level = inv.opts.DefaultLevel
		}
		level -= qty
		inv.levels[sku] = level
		if level < inv.opts.Threshold {
			low = append(low, sku)
		}
	}
	slices.Sort(low)
	return low, nil
}

// Restock waits RestockDelay and then adds RestockAmount to sku.
func (inv *Inventory) Restock(ctx context.Context, sku string) error {
	if inv.opts.RestockDelay > 0 {
		t := time.NewTimer(inv.opts.RestockDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()
	level, ok := inv.levels[sku]
	if !ok {
		level = inv.opts.DefaultLevel
	}
	inv.levels[sku] = level + inv.opts.RestockAmount
	return nil
}

// Level returns the current stock level of sku.
func (inv *Inventory) Level(sku string) int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if level, ok := inv.levels[sku]; ok {
		return level
	}
	return inv.opts.DefaultLevel
}
