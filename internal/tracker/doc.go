// Package tracker models the transcription job lifecycle and holds the
// per-job record that the rest of the system reads and mutates.
//
// Status enumerates the lifecycle (NOT_STARTED through
// TRANSCRIPTION_UPLOAD_COMPLETE, with TRANSCRIPTION_FAILED as a side exit).
// Record is the persisted unit of state; it is a value type and every change
// is validated as a full replacement before it becomes visible.
//
// Store is the container for one job's Record. Each job owns its own Store;
// there is no process-wide instance. The typed Mutate/Replace methods serve
// the pipeline, while Update/Get accept loosely typed field maps and resolve
// near-miss field names so records written by older schemas can still be
// read. WithStrictFields disables that resolution.
package tracker
