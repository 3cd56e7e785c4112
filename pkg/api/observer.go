package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the engine for logging and metrics.
//
// Callbacks run on the goroutine that owns the run. The *RunState passed in
// is live: implementations must not retain or modify it, and should clone it
// if they need it later. Implementations should be fast and non-blocking.
type Observer interface {
	// OnRunStart is called once when a run enters StatusRunning.
	OnRunStart(ctx context.Context, run *RunState)

	// OnRunCompleted is called when a run reaches StatusCompleted.
	OnRunCompleted(ctx context.Context, run *RunState)

	// OnRunFailed is called when a run ends in StatusFailed.
	OnRunFailed(ctx context.Context, run *RunState, err error)

	// OnStepStart is called before a node handler is invoked.
	OnStepStart(ctx context.Context, run *RunState, node Node)

	// OnStepCompleted is called after a node handler returns, for both
	// successes and failures (err != nil).
	OnStepCompleted(ctx context.Context, run *RunState, node Node, err error, duration time.Duration)

	// OnStepRetry is called when a failed node is scheduled for another
	// attempt. retries is the updated retry counter.
	OnStepRetry(ctx context.Context, run *RunState, node Node, retries int, delay time.Duration)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnRunStart(ctx context.Context, run *RunState)                {}
func (NoopObserver) OnRunCompleted(ctx context.Context, run *RunState)            {}
func (NoopObserver) OnRunFailed(ctx context.Context, run *RunState, err error)    {}
func (NoopObserver) OnStepStart(ctx context.Context, run *RunState, node Node)    {}
func (NoopObserver) OnStepCompleted(ctx context.Context, run *RunState, node Node, err error, d time.Duration) {
}
func (NoopObserver) OnStepRetry(ctx context.Context, run *RunState, node Node, retries int, delay time.Duration) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnRunStart(ctx context.Context, run *RunState) {
	for _, o := range c.observers {
		o.OnRunStart(ctx, run)
	}
}

func (c *CompositeObserver) OnRunCompleted(ctx context.Context, run *RunState) {
	for _, o := range c.observers {
		o.OnRunCompleted(ctx, run)
	}
}

func (c *CompositeObserver) OnRunFailed(ctx context.Context, run *RunState, err error) {
	for _, o := range c.observers {
		o.OnRunFailed(ctx, run, err)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, run *RunState, node Node) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, run, node)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, run *RunState, node Node, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, run, node, err, d)
	}
}

func (c *CompositeObserver) OnStepRetry(ctx context.Context, run *RunState, node Node, retries int, delay time.Duration) {
	for _, o := range c.observers {
		o.OnStepRetry(ctx, run, node, retries, delay)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs run / step lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnRunStart(ctx context.Context, run *RunState) {
	o.Logger.InfoContext(ctx, "run_start",
		slog.String("workflow_id", run.WorkflowID),
		slog.String("run_id", run.RunID),
		slog.String("event_type", run.EventType),
	)
}

func (o *LoggingObserver) OnRunCompleted(ctx context.Context, run *RunState) {
	o.Logger.InfoContext(ctx, "run_completed",
		slog.String("workflow_id", run.WorkflowID),
		slog.String("run_id", run.RunID),
		slog.Int("steps", len(run.Steps)),
	)
}

func (o *LoggingObserver) OnRunFailed(ctx context.Context, run *RunState, err error) {
	o.Logger.ErrorContext(ctx, "run_failed",
		slog.String("workflow_id", run.WorkflowID),
		slog.String("run_id", run.RunID),
		slog.String("node", run.CurrentNode),
		slog.Int("retries", run.Retries),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, run *RunState, node Node) {
	o.Logger.DebugContext(ctx, "step_start",
		slog.String("run_id", run.RunID),
		slog.String("node", node.ID),
		slog.String("node_type", string(node.Type)),
	)
}

func (o *LoggingObserver) OnStepCompleted(ctx context.Context, run *RunState, node Node, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "step_completed",
		slog.String("run_id", run.RunID),
		slog.String("node", node.ID),
		slog.String("node_type", string(node.Type)),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnStepRetry(ctx context.Context, run *RunState, node Node, retries int, delay time.Duration) {
	o.Logger.WarnContext(ctx, "step_retry",
		slog.String("run_id", run.RunID),
		slog.String("node", node.ID),
		slog.Int("retries", retries),
		slog.Duration("delay", delay),
	)
}

// BasicMetrics collects simple counters and aggregate step durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	runsStarted       atomic.Int64
	runsCompleted     atomic.Int64
	runsFailed        atomic.Int64
	stepsCompleted    atomic.Int64
	stepRetries       atomic.Int64
	totalStepDuration atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	RunsStarted   int64
	RunsCompleted int64
	RunsFailed    int64
	ActiveRuns    int64

	StepsCompleted  int64
	StepRetries     int64
	AvgStepDuration time.Duration
}

func (m *BasicMetrics) OnRunStart(ctx context.Context, run *RunState) {
	m.runsStarted.Add(1)
}

func (m *BasicMetrics) OnRunCompleted(ctx context.Context, run *RunState) {
	m.runsCompleted.Add(1)
}

func (m *BasicMetrics) OnRunFailed(ctx context.Context, run *RunState, err error) {
	m.runsFailed.Add(1)
}

func (m *BasicMetrics) OnStepCompleted(ctx context.Context, run *RunState, node Node, err error, d time.Duration) {
	// Only count successful steps for average duration.
	if err == nil {
		m.stepsCompleted.Add(1)
		m.totalStepDuration.Add(d.Nanoseconds())
	}
}

func (m *BasicMetrics) OnStepRetry(ctx context.Context, run *RunState, node Node, retries int, delay time.Duration) {
	m.stepRetries.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.runsStarted.Load()
	completed := m.runsCompleted.Load()
	failed := m.runsFailed.Load()
	steps := m.stepsCompleted.Load()
	totalNs := m.totalStepDuration.Load()

	var avg time.Duration
	if steps > 0 {
		avg = time.Duration(totalNs / steps)
	}

	return BasicMetricsSnapshot{
		RunsStarted:     started,
		RunsCompleted:   completed,
		RunsFailed:      failed,
		ActiveRuns:      started - completed - failed,
		StepsCompleted:  steps,
		StepRetries:     m.stepRetries.Load(),
		AvgStepDuration: avg,
	}
}
