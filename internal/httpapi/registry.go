package httpapi

import (
	"sync"
	"time"

	"scribe/internal/workflow"
)

type entry struct {
	job        *workflow.Job
	running    bool
	err        error
	finishedAt time.Time
}

// registry maps job ids to jobs started through the API.
type registry struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

func newRegistry() *registry {
	return &registry{jobs: make(map[string]*entry)}
}

func (r *registry) add(job *workflow.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = &entry{job: job, running: true}
}

func (r *registry) finish(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.jobs[id]; ok {
		e.running = false
		e.err = err
		e.finishedAt = time.Now()
	}
}

func (r *registry) get(id string) (entrySnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[id]
	if !ok {
		return entrySnapshot{}, false
	}
	return snapshotOf(e), true
}

func (r *registry) all() []entrySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entrySnapshot, 0, len(r.jobs))
	for _, e := range r.jobs {
		out = append(out, snapshotOf(e))
	}
	return out
}

func snapshotOf(e *entry) entrySnapshot {
	return entrySnapshot{
		id:         e.job.ID,
		record:     e.job.Snapshot(),
		running:    e.running,
		err:        e.err,
		startedAt:  e.job.StartedAt,
		finishedAt: e.finishedAt,
	}
}
