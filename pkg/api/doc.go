// Package api contains the core building blocks used by the opsflow
// orchestrator. It defines the workflow graph model, the per-run state
// records, the capability interfaces node handlers are built on, the error
// taxonomy, and the Observer hooks used for logging and metrics.
//
// Most users interact with the higher-level opsflow package, which re-exports
// selected types from this package. The api package is intended for custom
// integrations: supplying a real OrderReconciler or Inventory, writing an
// Observer, or replacing a node Handler.
//
// # Workflows
//
// A Workflow is a directed graph of typed Nodes connected by Edges. Each Node
// carries a NodeType drawn from a closed set (reconcile_orders, restock_check,
// decision, alert, parallel) and a free-form Config map. Edges may carry a
// condition label; at most one outgoing edge per node is unconditional and
// acts as the fallback.
//
// Workflows are immutable once stored. The engine only reads them.
//
// # Runs
//
// Every inbound Event spawns one run. A RunState moves through
//
//	start -> running -> completed | failed
//
// and records an append-only sequence of StepResults. A RunState is owned by
// exactly one goroutine; everybody else sees copies produced by Clone.
//
// # Handlers
//
// A Handler executes one node. It receives a Request holding a private copy
// of the run data and returns a Result: an output map merged into the run
// data, and an optional condition label used for edge selection.
//
// # Observability
//
// Observers receive run and step lifecycle callbacks. LoggingObserver writes
// structured logs with log/slog, BasicMetrics keeps in-process counters and
// CompositeObserver fans out to several observers.
package api
