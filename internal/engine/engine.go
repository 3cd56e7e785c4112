// Package engine walks workflow graphs for individual runs.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"github.com/petrijr/opsflow/pkg/api"
)

// Dispatcher executes a single node. *handlers.Registry implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req api.Request) (api.Result, error)
}

// DefaultMaxSteps bounds the number of node visits of a single run.
const DefaultMaxSteps = 1000

// Config describes how to construct an Engine.
type Config struct {
	Dispatcher Dispatcher
	Runs       *RunRegistry
	Notifier   api.Notifier
	Observer   api.Observer
	Logger     *slog.Logger
	Retry      RetryPolicy

	// MaxSteps bounds successful node visits per run so a cyclic graph
	// cannot run forever. Zero means DefaultMaxSteps.
	MaxSteps int
}

// Engine is the per-run state machine. A single Engine executes any number
// of runs concurrently; each run's state is owned by the goroutine calling
// Execute for it.
type Engine struct {
	dispatcher Dispatcher
	runs       *RunRegistry
	notifier   api.Notifier
	observer   api.Observer
	logger     *slog.Logger
	retry      RetryPolicy
	maxSteps   int
}

// New constructs an Engine. Dispatcher is required; everything else has a
// default.
func New(cfg Config) *Engine {
	if cfg.Dispatcher == nil {
		panic("engine: nil dispatcher")
	}
	if cfg.Runs == nil {
		cfg.Runs = NewRunRegistry(0)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = api.NoopNotifier{}
	}
	if cfg.Observer == nil {
		cfg.Observer = api.NoopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	return &Engine{
		dispatcher: cfg.Dispatcher,
		runs:       cfg.Runs,
		notifier:   cfg.Notifier,
		observer:   cfg.Observer,
		logger:     cfg.Logger,
		retry:      cfg.Retry,
		maxSteps:   cfg.MaxSteps,
	}
}

// Runs returns the registry the engine publishes run snapshots to.
func (e *Engine) Runs() *RunRegistry {
	return e.runs
}

// Execute runs wf for one event until the run reaches a terminal status and
// returns the final state. It never returns a nil state; failures are
// reported through the state's status and error.
//
// Cancelling ctx fails the run at its next suspension point.
func (e *Engine) Execute(ctx context.Context, runID string, wf *api.Workflow, evt api.Event) *api.RunState {
	now := time.Now().UTC()
	run := &api.RunState{
		RunID:      runID,
		WorkflowID: wf.ID,
		EventType:  evt.Type,
		Status:     api.StatusStart,
		Data:       api.CloneData(evt.Data),
		Steps:      []api.StepResult{},
		StartedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.runs.Insert(run); err != nil {
		e.logger.ErrorContext(ctx, "run_insert_failed", slog.String("run_id", runID), slog.Any("error", err))
		run.Status = api.StatusFailed
		run.Error = err.Error()
		return run
	}

	run.Status = api.StatusRunning
	run.CurrentNode = wf.StartNode()
	e.snapshot(run)
	e.notifier.Publish(ctx, runID, api.StatusRunning, map[string]any{
		"workflow_id": wf.ID,
		"event_type":  evt.Type,
	})
	e.observer.OnRunStart(ctx, run)

	e.walk(ctx, run, wf)
	return run
}

// walk is the step loop. It iterates over an explicit current node so run
// length never grows the call stack.
func (e *Engine) walk(ctx context.Context, run *api.RunState, wf *api.Workflow) {
	for {
		if err := ctx.Err(); err != nil {
			e.fail(ctx, run, err)
			return
		}

		node, ok := wf.Node(run.CurrentNode)
		if !ok {
			e.logger.DebugContext(ctx, "graph_exhausted",
				slog.String("run_id", run.RunID),
				slog.Any("reason", &api.GraphError{NodeID: run.CurrentNode, Reason: "node not found"}),
			)
			e.complete(ctx, run)
			return
		}

		if len(run.Steps) >= e.maxSteps {
			e.fail(ctx, run, api.ErrStepLimitExceeded)
			return
		}

		e.observer.OnStepStart(ctx, run, node)
		start := time.Now()
		res, err := e.dispatcher.Dispatch(ctx, api.Request{
			RunID:    run.RunID,
			Workflow: wf,
			Node:     node,
			Data:     api.CloneData(run.Data),
		})
		e.observer.OnStepCompleted(ctx, run, node, err, time.Since(start))

		if err != nil {
			if !e.retryNode(ctx, run, node, err) {
				return
			}
			continue
		}

		e.record(run, node, res)

		next, gerr := resolveNext(wf, node.ID, res.Condition)
		if gerr != nil {
			e.logger.DebugContext(ctx, "graph_exhausted",
				slog.String("run_id", run.RunID),
				slog.Any("reason", gerr),
			)
			e.complete(ctx, run)
			return
		}
		run.CurrentNode = next
		e.snapshot(run)
	}
}

// record appends the step result (followed by any parallel branch visits),
// merges the handler output into the run data and resets the retry counter.
func (e *Engine) record(run *api.RunState, node api.Node, res api.Result) {
	now := time.Now().UTC()
	run.Steps = append(run.Steps, api.StepResult{
		NodeID:    node.ID,
		Outcome:   api.CloneData(res.Output),
		Condition: res.Condition,
		Retries:   run.Retries,
		Timestamp: now,
	})
	for _, b := range res.Branches {
		run.Steps = append(run.Steps, api.StepResult{
			NodeID:    b.NodeID,
			Outcome:   api.CloneData(b.Output),
			Condition: b.Condition,
			Retries:   run.Retries,
			Timestamp: now,
		})
	}
	maps.Copy(run.Data, api.CloneData(res.Output))
	run.Retries = 0
}

// retryNode applies the retry policy after a handler failure. It reports
// whether the same node should be dispatched again.
func (e *Engine) retryNode(ctx context.Context, run *api.RunState, node api.Node, err error) bool {
	run.Status = api.StatusFailed
	run.Error = err.Error()
	e.snapshot(run)

	e.logger.ErrorContext(ctx, "step_failed",
		slog.String("run_id", run.RunID),
		slog.String("node", node.ID),
		slog.Int("retries", run.Retries),
		slog.Any("error", err),
	)

	if errors.Is(err, api.ErrUnknownNodeType) || !e.retry.CanRetry(run.Retries) {
		e.fail(ctx, run, err)
		return false
	}

	run.Retries++
	delay := e.retry.Delay(run.Retries)
	e.observer.OnStepRetry(ctx, run, node, run.Retries, delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		e.fail(ctx, run, ctx.Err())
		return false
	case <-timer.C:
	}

	run.Status = api.StatusRunning
	run.Error = ""
	e.snapshot(run)
	return true
}

func (e *Engine) complete(ctx context.Context, run *api.RunState) {
	run.Status = api.StatusCompleted
	run.Error = ""
	e.finish(run)
	e.notifier.Publish(ctx, run.RunID, api.StatusCompleted, map[string]any{
		"workflow_id": run.WorkflowID,
		"steps":       len(run.Steps),
	})
	e.observer.OnRunCompleted(ctx, run)
}

func (e *Engine) fail(ctx context.Context, run *api.RunState, err error) {
	run.Status = api.StatusFailed
	run.Error = err.Error()
	e.finish(run)
	e.notifier.Publish(ctx, run.RunID, api.StatusFailed, map[string]any{
		"workflow_id": run.WorkflowID,
		"node_id":     run.CurrentNode,
		"retries":     run.Retries,
		"error":       err.Error(),
	})
	e.observer.OnRunFailed(ctx, run, err)
}

func (e *Engine) snapshot(run *api.RunState) {
	run.UpdatedAt = time.Now().UTC()
	if err := e.runs.Update(run); err != nil {
		e.logger.Warn("run_snapshot_failed", slog.String("run_id", run.RunID), slog.Any("error", err))
	}
}

func (e *Engine) finish(run *api.RunState) {
	run.UpdatedAt = time.Now().UTC()
	if err := e.runs.Finish(run); err != nil {
		e.logger.Warn("run_finish_failed", slog.String("run_id", run.RunID), slog.Any("error", err))
	}
}

// resolveNext picks the edge to follow from node `from`.
//
// A condition label selects the first edge declared with that condition,
// falling back to the unconditional edge. No label selects the
// unconditional edge. A *api.GraphError means the walk is over.
func resolveNext(wf *api.Workflow, from, condition string) (string, error) {
	var fallback *api.Edge
	for _, edge := range wf.OutgoingEdges(from) {
		if condition != "" && edge.Condition == condition {
			return edge.To, nil
		}
		if edge.Condition == "" && fallback == nil {
			fallback = &edge
		}
	}
	if fallback != nil {
		return fallback.To, nil
	}

	reason := "no outgoing edge"
	if condition != "" {
		reason = "no edge matches condition " + condition
	}
	return "", &api.GraphError{NodeID: from, Reason: reason}
}
