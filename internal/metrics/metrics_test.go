package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/opsflow/pkg/api"
)

func TestObserverCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := New(reg)
	require.NoError(t, err)

	ctx := context.Background()
	run := &api.RunState{RunID: "r1"}
	node := api.Node{ID: "c", Type: api.NodeRestockCheck}

	o.OnRunStart(ctx, run)
	o.OnRunStart(ctx, run)
	o.OnStepCompleted(ctx, run, node, errors.New("boom"), 5*time.Millisecond)
	o.OnStepRetry(ctx, run, node, 1, 2*time.Second)
	o.OnStepCompleted(ctx, run, node, nil, time.Millisecond)
	o.OnRunCompleted(ctx, run)
	o.OnRunFailed(ctx, run, errors.New("exhausted"))
	o.EventDropped("workflow_not_found")

	assert.Equal(t, 2.0, testutil.ToFloat64(o.runsStarted))
	assert.Equal(t, 0.0, testutil.ToFloat64(o.activeRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.runsFinished.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.runsFinished.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.stepRetries.WithLabelValues("restock_check")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.eventsDropped.WithLabelValues("workflow_not_found")))
	assert.Equal(t, 2, testutil.CollectAndCount(o.stepDuration))
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	require.Error(t, err)
}
