// Package worker implements the event ingestion loop that turns inbound
// business events into workflow runs.
//
// A Worker subscribes to the inbound event topic and, for every message, in
// delivery order:
//
//   - decodes the serialized api.Event
//   - resolves the event's workflow through the workflow store
//   - allocates a fresh run id
//   - hands the run to a spawner, which executes it on its own goroutine
//
// The loop itself performs no business logic. A slow or stuck run never
// blocks intake of later events because runs execute outside the loop.
//
// # Failure handling
//
// Events that cannot be decoded or that name an unknown workflow are logged
// and dropped. They are not retried: a bad lookup retried forever would
// stall the loop.
//
// When the subscription fails or its channel closes, the worker
// resubscribes with capped exponential backoff until its context ends.
//
// # Publishing
//
// PublishEvent serializes an event onto the same topic. The HTTP API and the
// simulator use it to inject events for testing.
package worker
