package workflow

import (
	"sync"
	"time"

	"scribe/internal/tracker"
)

// Job is one transcription run with its own state store.
type Job struct {
	ID        string
	StartedAt time.Time

	store *tracker.Store
	// mu serializes Advance calls on the same job.
	mu sync.Mutex
}

// Store exposes the job's tracker store.
func (j *Job) Store() *tracker.Store {
	return j.store
}

// Snapshot returns the job's current record.
func (j *Job) Snapshot() tracker.Record {
	return j.store.Snapshot()
}
