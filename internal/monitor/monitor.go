// Package monitor counts how often each workflow status is reported and
// warns when a status repeats more often than expected.
package monitor

import (
	"log/slog"
	"maps"
	"sync"

	"scribe/internal/logging"
	"scribe/internal/tracker"
)

// DefaultThreshold is the repeat count above which a warning is emitted.
const DefaultThreshold = 3

// Monitor is safe for concurrent use and shared across jobs.
type Monitor struct {
	mu        sync.Mutex
	counts    map[tracker.Status]int
	threshold int
	logger    *slog.Logger
}

// New constructs a Monitor. A threshold below one falls back to DefaultThreshold.
func New(logger *slog.Logger, threshold int) *Monitor {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return &Monitor{
		counts:    make(map[tracker.Status]int),
		threshold: threshold,
		logger:    logging.NewComponentLogger(logger, "monitor"),
	}
}

// Observe records one report of status and returns the updated count.
func (m *Monitor) Observe(status tracker.Status, comment string) int {
	m.mu.Lock()
	m.counts[status]++
	count := m.counts[status]
	m.mu.Unlock()

	m.logger.Debug("status observed",
		logging.Status(status),
		logging.String("comment", comment),
		logging.Int("count", count),
	)
	if count > m.threshold {
		logging.WarnWithContext(m.logger, "status reported repeatedly", "status_repeat",
			logging.Status(status),
			logging.Int("count", count),
			logging.Int("threshold", m.threshold),
			logging.Hint("a job may be stuck retrying the same step"),
			logging.Impact("none; reporting only"),
		)
	}
	return count
}

// Counts returns a copy of the current counters.
func (m *Monitor) Counts() map[tracker.Status]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.counts)
}

// Reset clears every counter.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.counts)
}
