package opsflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/petrijr/opsflow/internal/capability"
	"github.com/petrijr/opsflow/internal/engine"
	"github.com/petrijr/opsflow/internal/handlers"
	"github.com/petrijr/opsflow/internal/metrics"
	"github.com/petrijr/opsflow/internal/notify"
	"github.com/petrijr/opsflow/internal/persistence"
	"github.com/petrijr/opsflow/internal/pubsub"
	"github.com/petrijr/opsflow/internal/server"
	"github.com/petrijr/opsflow/pkg/api"
	"github.com/petrijr/opsflow/pkg/worker"
)

// Orchestrator bundles the workflow store, the event bus, the handler
// registry, the engine and the ingestion loop into one process-local
// service.
//
// Typical usage:
//
//	orch, err := opsflow.New(ctx, opsflow.DefaultConfig())
//	_ = orch.SaveWorkflow(ctx, wf)
//	_ = orch.Start(ctx)
//	_ = orch.PublishEvent(ctx, opsflow.Event{Type: "order_placed", WorkflowID: wf.ID})
//	...
//	_ = orch.Shutdown(ctx)
type Orchestrator struct {
	// Workflows is the (possibly cached) workflow store.
	Workflows persistence.WorkflowStore

	// Bus carries inbound events and outbound notifications.
	Bus pubsub.Provider

	// Handlers dispatches nodes and validates graphs.
	Handlers *handlers.Registry

	// Engine executes runs; Engine.Runs() holds run snapshots.
	Engine *engine.Engine

	// Worker is the event ingestion loop.
	Worker *worker.Worker

	// Notifier publishes run status to the dashboard topic.
	Notifier *notify.Publisher

	// Metrics is the in-process counter snapshot.
	Metrics *api.BasicMetrics

	cfg        *Config
	logger     *slog.Logger
	gatherer   prometheus.Gatherer
	supervisor *engine.Supervisor
	closers    []func() error

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// Option customizes an Orchestrator.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	observers  []api.Observer
	orders     api.OrderReconciler
	inventory  api.Inventory
	store      persistence.WorkflowStore
	bus        pubsub.Provider
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	retry      *RetryPolicy
	newRunID   func() string
}

// WithLogger sets the logger every component writes to.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver adds an observer next to the built-in logging and metrics
// observers.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// WithOrderReconciler replaces the in-process order reconciliation service.
func WithOrderReconciler(r OrderReconciler) Option {
	return func(o *options) { o.orders = r }
}

// WithInventory replaces the in-process inventory service.
func WithInventory(inv Inventory) Option {
	return func(o *options) { o.inventory = inv }
}

// WithWorkflowStore uses store instead of opening the configured backend.
func WithWorkflowStore(store persistence.WorkflowStore) Option {
	return func(o *options) { o.store = store }
}

// WithBus uses bus instead of the configured transport. The caller keeps
// ownership; Shutdown does not close it.
func WithBus(bus pubsub.Provider) Option {
	return func(o *options) { o.bus = bus }
}

// WithPrometheus registers collectors on reg and serves g on /metrics.
// By default a private registry is used.
func WithPrometheus(reg prometheus.Registerer, g prometheus.Gatherer) Option {
	return func(o *options) {
		o.registerer = reg
		o.gatherer = g
	}
}

// WithRetryPolicy overrides the retry policy derived from the config.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) { o.retry = &p }
}

// WithRunIDs sets the run id generator.
func WithRunIDs(fn func() string) Option {
	return func(o *options) { o.newRunID = fn }
}

// New wires an Orchestrator from cfg. Nothing is consumed until Start.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	orch := &Orchestrator{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = orch.closeResources()
		}
	}()

	if err := orch.openStore(ctx, o.store); err != nil {
		return nil, err
	}
	if err := orch.openBus(o.bus); err != nil {
		return nil, err
	}

	registerer, gatherer := o.registerer, o.gatherer
	if registerer == nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		registerer, gatherer = reg, reg
	}
	orch.gatherer = gatherer
	promObserver, err := metrics.New(registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	orch.Metrics = &api.BasicMetrics{}

	orch.Notifier = notify.NewPublisher(orch.Bus, cfg.Bus.UpdatesTopic, cfg.Bus.NotifyTimeout, logger)

	orders := o.orders
	if orders == nil {
		orders = &capability.Orders{}
	}
	inventory := o.inventory
	if inventory == nil {
		inventory = capability.NewInventory(capability.InventoryOptions{
			Threshold:     cfg.Inventory.Threshold,
			RestockAmount: cfg.Inventory.RestockAmount,
			RestockDelay:  cfg.Inventory.RestockDelay,
			DefaultLevel:  cfg.Inventory.DefaultLevel,
		})
	}
	orch.Handlers = handlers.NewDefaultRegistry(handlers.Dependencies{
		Orders:    orders,
		Inventory: inventory,
		Notifier:  orch.Notifier,
		Logger:    logger,
	})

	retry := engine.RetryPolicy{
		MaxRetries: cfg.Engine.MaxRetries,
		Unit:       cfg.Engine.BackoffUnit,
		Multiplier: 2,
		MaxDelay:   cfg.Engine.MaxBackoff,
	}
	if o.retry != nil {
		retry = *o.retry
	}

	observers := append([]api.Observer{
		api.NewLoggingObserver(logger),
		orch.Metrics,
		promObserver,
	}, o.observers...)

	orch.Engine = engine.New(engine.Config{
		Dispatcher: orch.Handlers,
		Runs:       engine.NewRunRegistry(cfg.Engine.Retention),
		Notifier:   orch.Notifier,
		Observer:   api.NewCompositeObserver(observers...),
		Logger:     logger,
		Retry:      retry,
		MaxSteps:   cfg.Engine.MaxSteps,
	})

	orch.supervisor = engine.NewSupervisor(ctx)
	orch.Worker = worker.New(orch.Bus, orch.Workflows, orch.Engine, orch.supervisor, worker.Config{
		Topic:    cfg.Bus.EventsTopic,
		NewRunID: o.newRunID,
		Drops:    promObserver,
		Logger:   logger,
	})

	ok = true
	return orch, nil
}

func (o *Orchestrator) openStore(ctx context.Context, store persistence.WorkflowStore) error {
	if store != nil {
		o.Workflows = store
		return nil
	}
	p, err := persistence.Open(ctx, persistence.Options{
		Driver:     o.cfg.Store.Driver,
		DSN:        o.cfg.Store.DSN,
		Prefix:     o.cfg.Store.Prefix,
		Database:   o.cfg.Store.Database,
		Collection: o.cfg.Store.Collection,
		CacheSize:  o.cfg.Store.CacheSize,
		CacheTTL:   o.cfg.Store.CacheTTL,
	})
	if err != nil {
		return fmt.Errorf("open workflow store: %w", err)
	}
	o.Workflows = p.Workflows
	o.closers = append(o.closers, p.Close)
	return nil
}

func (o *Orchestrator) openBus(bus pubsub.Provider) error {
	if bus != nil {
		o.Bus = bus
		return nil
	}
	switch o.cfg.Bus.Driver {
	case "", "memory":
		// Dashboard consumers tolerate gaps; a stalled one must not hold up runs.
		mem := pubsub.NewInMemoryBus(o.cfg.Bus.Buffer, pubsub.WithDropOnFull(o.cfg.Bus.UpdatesTopic))
		o.Bus = mem
		o.closers = append(o.closers, mem.Close)
	case "redis":
		client, err := persistence.NewRedisClient(o.cfg.Bus.RedisAddr)
		if err != nil {
			return err
		}
		rb, err := pubsub.NewRedisBus(client, o.cfg.Bus.Prefix)
		if err != nil {
			_ = client.Close()
			return err
		}
		o.Bus = rb
		o.closers = append(o.closers, client.Close, rb.Close)
	default:
		return fmt.Errorf("opsflow: unknown bus driver %q", o.cfg.Bus.Driver)
	}
	return nil
}

// Start launches the ingestion loop. It returns an error if the
// orchestrator is already running.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return errors.New("opsflow: orchestrator already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	o.running = true

	go func(done chan struct{}) {
		defer close(done)
		if err := o.Worker.Run(ctx); err != nil {
			o.logger.ErrorContext(ctx, "ingestion_stopped", slog.Any("error", err))
		}
	}(o.done)

	o.logger.InfoContext(ctx, "orchestrator_started",
		slog.String("events_topic", o.cfg.Bus.EventsTopic),
		slog.String("updates_topic", o.cfg.Bus.UpdatesTopic),
	)
	return nil
}

// Shutdown stops ingestion, waits for in-flight runs and restocks until ctx
// expires (cancelling whatever is left), then releases the store and bus.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.running = false
	o.cancel = nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	var errs []error
	if err := o.supervisor.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("waiting for runs: %w", err))
	}
	if err := o.Handlers.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("waiting for restocks: %w", err))
	}
	if err := o.closeResources(); err != nil {
		errs = append(errs, err)
	}

	published, failed := o.Notifier.Stats()
	o.logger.InfoContext(ctx, "orchestrator_stopped",
		slog.Int64("notifications_published", published),
		slog.Int64("notifications_failed", failed),
	)
	return errors.Join(errs...)
}

func (o *Orchestrator) closeResources() error {
	var errs []error
	for i := len(o.closers) - 1; i >= 0; i-- {
		if err := o.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	o.closers = nil
	return errors.Join(errs...)
}

// Outstanding reports how many runs are still executing.
func (o *Orchestrator) Outstanding() int {
	return o.supervisor.Outstanding()
}

// SaveWorkflow validates wf against the registered handlers and stores it.
// An empty id is replaced with a fresh one.
func (o *Orchestrator) SaveWorkflow(ctx context.Context, wf *Workflow) error {
	if err := o.Handlers.Validate(wf); err != nil {
		return err
	}
	return o.Workflows.SaveWorkflow(ctx, wf)
}

// GetWorkflow returns a stored workflow or ErrWorkflowNotFound.
func (o *Orchestrator) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	return o.Workflows.GetWorkflow(ctx, id)
}

// PublishEvent puts evt on the inbound channel.
func (o *Orchestrator) PublishEvent(ctx context.Context, evt Event) error {
	return o.Worker.PublishEvent(ctx, evt)
}

// GetRun returns a run snapshot from the run registry.
func (o *Orchestrator) GetRun(id string) (*RunState, error) {
	return o.Engine.Runs().Get(id)
}

// HTTPHandler returns the HTTP API bound to this orchestrator.
func (o *Orchestrator) HTTPHandler() http.Handler {
	return server.New(server.Options{
		Workflows:    o.Workflows,
		Validator:    o.Handlers,
		Events:       o.Worker,
		Runs:         o.Engine.Runs(),
		Updates:      o.Bus,
		UpdatesTopic: o.cfg.Bus.UpdatesTopic,
		Gatherer:     o.gatherer,
		Logger:       o.logger,
	}).Handler()
}
