package persistence

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestInMemoryStore_Contract(t *testing.T) {
	runWorkflowStoreContract(t, NewInMemoryStore())
}

func TestInMemoryStore_ConcurrentReads(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	if err := store.SaveWorkflow(ctx, sampleWorkflow("wf-shared")); err != nil {
		t.Fatalf("SaveWorkflow failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 32; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := store.GetWorkflow(ctx, "wf-shared"); err != nil {
				errs <- err
			}
		}()
		go func(i int) {
			defer wg.Done()
			if err := store.SaveWorkflow(ctx, sampleWorkflow(fmt.Sprintf("wf-%d", i))); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent access failed: %v", err)
	}
}
