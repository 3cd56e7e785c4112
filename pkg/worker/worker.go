package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/petrijr/opsflow/internal/pubsub"
	"github.com/petrijr/opsflow/pkg/api"
)

var (
	// ErrMalformedEvent is returned by HandleMessage for payloads that are not
	// a valid serialized event.
	ErrMalformedEvent = errors.New("malformed event")

	eventValidator = newEventValidator()
)

func newEventValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

// WorkflowSource resolves workflows by id.
type WorkflowSource interface {
	GetWorkflow(ctx context.Context, id string) (*api.Workflow, error)
}

// Executor runs a workflow for one event to completion.
type Executor interface {
	Execute(ctx context.Context, runID string, wf *api.Workflow, evt api.Event) *api.RunState
}

// Spawner starts run goroutines and tracks them.
type Spawner interface {
	Spawn(fn func(ctx context.Context)) error
}

// DropRecorder is notified about every dropped event. The metrics observer
// implements it.
type DropRecorder interface {
	EventDropped(reason string)
}

// Config tunes a Worker.
type Config struct {
	// Topic is the inbound event topic. Defaults to api.TopicOrderEvents.
	Topic string

	// ResubscribeBackoff is the first delay between subscription attempts;
	// it doubles up to ResubscribeMaxBackoff.
	ResubscribeBackoff    time.Duration
	ResubscribeMaxBackoff time.Duration

	// NewRunID allocates run ids. Defaults to random UUIDs.
	NewRunID func() string

	Drops  DropRecorder
	Logger *slog.Logger
}

// Stats counts what the worker did with inbound messages.
type Stats struct {
	Received int64
	Spawned  int64
	Dropped  int64
}

// Worker is the event ingestion loop.
type Worker struct {
	bus       pubsub.Provider
	workflows WorkflowSource
	executor  Executor
	spawner   Spawner
	cfg       Config
	logger    *slog.Logger

	received atomic.Int64
	spawned  atomic.Int64
	dropped  atomic.Int64
}

// New creates a new Worker.
func New(bus pubsub.Provider, workflows WorkflowSource, executor Executor, spawner Spawner, cfg Config) *Worker {
	if cfg.Topic == "" {
		cfg.Topic = api.TopicOrderEvents
	}
	if cfg.ResubscribeBackoff <= 0 {
		cfg.ResubscribeBackoff = 100 * time.Millisecond
	}
	if cfg.ResubscribeMaxBackoff <= 0 {
		cfg.ResubscribeMaxBackoff = 10 * time.Second
	}
	if cfg.NewRunID == nil {
		cfg.NewRunID = uuid.NewString
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		bus:       bus,
		workflows: workflows,
		executor:  executor,
		spawner:   spawner,
		cfg:       cfg,
		logger:    logger,
	}
}

// PublishEvent serializes evt onto the inbound topic.
func (w *Worker) PublishEvent(ctx context.Context, evt api.Event) error {
	if err := eventValidator.Struct(evt); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return w.bus.Publish(ctx, w.cfg.Topic, payload)
}

// Run consumes events until ctx is cancelled. It returns nil on
// cancellation and an error only if the transport can no longer be
// subscribed to at all.
func (w *Worker) Run(ctx context.Context) error {
	for {
		sub, err := w.subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		w.logger.InfoContext(ctx, "ingestion_subscribed", slog.String("topic", w.cfg.Topic))
		w.consume(ctx, sub)
		_ = sub.Close()

		if ctx.Err() != nil {
			return nil
		}
		w.logger.WarnContext(ctx, "ingestion_subscription_lost", slog.String("topic", w.cfg.Topic))
	}
}

func (w *Worker) subscribe(ctx context.Context) (pubsub.Subscription, error) {
	backoff := retry.NewExponential(w.cfg.ResubscribeBackoff)
	backoff = retry.WithCappedDuration(w.cfg.ResubscribeMaxBackoff, backoff)
	backoff = retry.WithJitterPercent(10, backoff)

	var sub pubsub.Subscription
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		s, err := w.bus.Subscribe(ctx, w.cfg.Topic)
		if err != nil {
			if errors.Is(err, pubsub.ErrClosed) {
				return err
			}
			w.logger.WarnContext(ctx, "ingestion_subscribe_failed",
				slog.String("topic", w.cfg.Topic),
				slog.Any("error", err),
			)
			return retry.RetryableError(err)
		}
		sub = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (w *Worker) consume(ctx context.Context, sub pubsub.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			_, _ = w.HandleMessage(ctx, msg.Payload)
		}
	}
}

// HandleMessage routes one serialized event. It returns the id of the
// spawned run, or the reason the event was dropped.
func (w *Worker) HandleMessage(ctx context.Context, payload []byte) (string, error) {
	w.received.Add(1)

	var evt api.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return "", w.drop(ctx, "malformed", fmt.Errorf("%w: %v", ErrMalformedEvent, err))
	}
	if err := eventValidator.Struct(evt); err != nil {
		return "", w.drop(ctx, "malformed", fmt.Errorf("%w: %v", ErrMalformedEvent, err))
	}

	wf, err := w.workflows.GetWorkflow(ctx, evt.WorkflowID)
	if err != nil {
		reason := "lookup_failed"
		if errors.Is(err, api.ErrWorkflowNotFound) {
			reason = "workflow_not_found"
		}
		return "", w.drop(ctx, reason, fmt.Errorf("workflow %q: %w", evt.WorkflowID, err))
	}

	runID := w.cfg.NewRunID()
	err = w.spawner.Spawn(func(ctx context.Context) {
		w.executor.Execute(ctx, runID, wf, evt)
	})
	if err != nil {
		return "", w.drop(ctx, "spawn_rejected", err)
	}

	w.spawned.Add(1)
	w.logger.DebugContext(ctx, "run_spawned",
		slog.String("run_id", runID),
		slog.String("workflow_id", evt.WorkflowID),
		slog.String("event_type", evt.Type),
	)
	return runID, nil
}

func (w *Worker) drop(ctx context.Context, reason string, err error) error {
	w.dropped.Add(1)
	if w.cfg.Drops != nil {
		w.cfg.Drops.EventDropped(reason)
	}
	w.logger.WarnContext(ctx, "event_dropped",
		slog.String("reason", reason),
		slog.Any("error", err),
	)
	return err
}

// Stats returns a snapshot of the worker's counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Received: w.received.Load(),
		Spawned:  w.spawned.Load(),
		Dropped:  w.dropped.Load(),
	}
}
