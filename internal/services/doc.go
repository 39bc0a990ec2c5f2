// Package services defines shared utilities consumed by the pipeline steps
// and the external integrations behind them.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, step names, blob references and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper. FailureStatus turns a
//     step error into the status the orchestrator persists: engine errors
//     always fail the job, cancellation and transient blob store failures
//     leave it in place, everything else fails it.
//
// The guard sub-package holds the uniform failure envelope used around every
// operation that touches tracker state or an external collaborator.
package services
