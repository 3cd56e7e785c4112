// Package opsflow is an event-triggered workflow orchestrator for order and
// inventory operations.
//
// Inbound business events (orders placed, stock movements) select a stored
// workflow graph and drive a new run through typed node handlers. Every run
// publishes its status to a dashboard channel that UIs and alerting consumers
// subscribe to.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. Workflow
//  2. Handler
//  3. Engine
//  4. Worker
//  5. Orchestrator
//
// # Workflow
//
// A Workflow is a directed graph of typed Nodes connected by Edges:
//
//	{
//	  "nodes": [
//	    {"id": "r", "type": "reconcile_orders"},
//	    {"id": "c", "type": "restock_check"},
//	    {"id": "a", "type": "alert"}
//	  ],
//	  "edges": [
//	    {"from": "r", "to": "c"},
//	    {"from": "c", "to": "a", "condition": "low_inventory"}
//	  ]
//	}
//
// A run starts at the node without incoming edges (or an explicit "entry"),
// and after each node follows the edge whose condition equals the label the
// handler emitted, or the unconditional edge when there is none. A node
// without a matching edge ends the run as completed.
//
// Workflows can be stored in memory, Redis, SQLite, Postgres or MongoDB, with
// an optional LRU read cache in front.
//
// # Handler
//
// Each node type has one Handler:
//
//   - reconcile_orders totals the order lines in the event data per SKU
//   - restock_check applies the totals to inventory and emits low_inventory
//     or ok; low SKUs are restocked in the background
//   - decision evaluates a CEL expression over the run data
//   - alert publishes an alert notification
//   - parallel runs several child nodes concurrently and merges their output
//
// # Engine
//
// The Engine walks one run at a time per goroutine. A failed node is retried
// in place up to three times with exponential backoff (2, 4 and 8 units)
// before the run fails. Runs are isolated from each other: each owns its
// state and the Run Registry only ever holds copies.
//
// # Worker
//
// The Worker consumes the order_events channel, looks up each event's
// workflow and spawns the run under a supervisor, so a slow run never
// blocks ingestion. Events for unknown workflows are dropped and logged.
//
// # Orchestrator
//
// Orchestrator wires everything from a Config and exposes the HTTP API:
//
//	orch, err := opsflow.New(ctx, opsflow.DefaultConfig())
//	if err != nil { ... }
//	_ = orch.Start(ctx)
//	http.ListenAndServe(":8080", orch.HTTPHandler())
//	...
//	_ = orch.Shutdown(shutdownCtx)
//
// Shutdown stops ingestion and waits for in-flight runs, cancelling them if
// the shutdown context expires first.
package opsflow
