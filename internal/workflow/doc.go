// Package workflow drives transcription jobs through the tracker lifecycle.
//
// A Runner owns the collaborators (blob store, engine, metadata syncer,
// monitor) and a Job owns one tracker.Store. Advance performs exactly one
// pipeline step: it runs the step for the job's current status, commits the
// step result to the store, pushes the new record into blob metadata, and
// reports it to the monitor. Terminal jobs are left untouched.
//
// Step failures never escape as panics. Each step returns a result or an
// error; the runner maps engine and other permanent errors to
// TRANSCRIPTION_FAILED and leaves the job in place for transient blob store
// errors so the next Advance retries the step.
package workflow
