// Package orchestrator runs every caller-facing project and task operation.
//
// # Overview
//
// Each operation follows the same pipeline:
//
//	Authorize → Manager → Emit
//
// An access failure stops the pipeline before any write. A manager failure
// stops it before any notification. A notification failure is logged and
// counted but never reported to the caller, since the mutation has already
// committed.
//
// # Key Components
//
//   - access.Evaluator: owner/member check against the stored project
//   - project.Manager: the only writer of project task references
//   - events.Emitter: envelope + publish, one attempt per change
//
// # Observability
//
// Every operation runs in an OpenTelemetry span named after the operation
// and updates the Prometheus metrics in Metrics.
package orchestrator
