package capability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/opsflow/pkg/api"
)

func TestOrders_Reconcile(t *testing.T) {
	o := &Orders{}
	rec, err := o.Reconcile(context.Background(), []api.OrderItem{
		{SKU: "SKU1", Qty: 5},
		{SKU: "SKU2", Qty: 3},
		{SKU: "SKU1", Qty: 2},
	})
	require.NoError(t, err)
	require.Equal(t, "reconciled", rec.Status)
	require.Equal(t, 10, rec.Total)
	require.Equal(t, map[string]int{"SKU1": 7, "SKU2": 3}, rec.SKUSummary)
}

func TestOrders_RejectsInvalidLine(t *testing.T) {
	o := &Orders{}
	_, err := o.Reconcile(context.Background(), []api.OrderItem{{SKU: "", Qty: 1}})
	if !errors.Is(err, ErrInvalidOrderLine) {
		t.Fatalf("expected ErrInvalidOrderLine, got %v", err)
	}
}

func TestOrders_LatencyRespectsContext(t *testing.T) {
	o := &Orders{Latency: time.Minute}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := o.Reconcile(ctx, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInventory_CheckRestockAndRestock(t *testing.T) {
	inv := NewInventory(InventoryOptions{
		Threshold:     10,
		RestockAmount: 100,
		DefaultLevel:  50,
		Levels:        map[string]int{"SKU1": 12, "SKU2": 40},
	})
	ctx := context.Background()

	low, err := inv.CheckRestock(ctx, map[string]int{"SKU1": 5, "SKU2": 5, "SKU3": 45})
	require.NoError(t, err)
	require.Equal(t, []string{"SKU1", "SKU3"}, low)
	require.Equal(t, 7, inv.Level("SKU1"))
	require.Equal(t, 35, inv.Level("SKU2"))

	require.NoError(t, inv.Restock(ctx, "SKU1"))
	require.Equal(t, 107, inv.Level("SKU1"))
}

func TestInventory_SeedRandom(t *testing.T) {
	inv := NewInventory(DefaultInventoryOptions())
	inv.SeedRandom(100, 5, 50)
	for _, sku := range []string{"SKU1", "SKU50", "SKU100"} {
		level := inv.Level(sku)
		if level < 5 || level > 50 {
			t.Fatalf("%s level %d out of range", sku, level)
		}
	}
}
