package opsflow

import (
	"github.com/petrijr/opsflow/internal/config"
	"github.com/petrijr/opsflow/internal/engine"
	"github.com/petrijr/opsflow/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Workflow     = api.Workflow
	Node         = api.Node
	Edge         = api.Edge
	NodeType     = api.NodeType
	Event        = api.Event
	Notification = api.Notification
	RunState     = api.RunState
	StepResult   = api.StepResult
	Status       = api.Status

	Handler         = api.Handler
	HandlerFunc     = api.HandlerFunc
	Request         = api.Request
	Result          = api.Result
	OrderReconciler = api.OrderReconciler
	Inventory       = api.Inventory
	Notifier        = api.Notifier
	OrderItem       = api.OrderItem
	Reconciliation  = api.Reconciliation

	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver

	RetryPolicy = engine.RetryPolicy
	Config      = config.Config
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Re-export status values and node types for convenience.

const (
	StatusStart     = api.StatusStart
	StatusRunning   = api.StatusRunning
	StatusCompleted = api.StatusCompleted
	StatusFailed    = api.StatusFailed
	StatusAlert     = api.StatusAlert

	NodeReconcileOrders = api.NodeReconcileOrders
	NodeRestockCheck    = api.NodeRestockCheck
	NodeDecision        = api.NodeDecision
	NodeAlert           = api.NodeAlert
	NodeParallel        = api.NodeParallel
)

// Re-export the error taxonomy.

var (
	ErrWorkflowNotFound  = api.ErrWorkflowNotFound
	ErrRunNotFound       = api.ErrRunNotFound
	ErrInvalidWorkflow   = api.ErrInvalidWorkflow
	ErrUnknownNodeType   = api.ErrUnknownNodeType
	ErrStepLimitExceeded = api.ErrStepLimitExceeded
)

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig layers OPSFLOW_ environment variables and overrides on top of
// DefaultConfig.
func LoadConfig(overrides map[string]any) (*Config, error) {
	return config.Load(overrides)
}
