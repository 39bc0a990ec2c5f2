package httpapi

import (
	"slices"
	"strings"
	"time"

	"scribe/internal/tracker"
)

// dateTimeFormat is used for timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobItem describes a job in a transport-friendly format.
type JobItem struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Comment        string `json:"comment"`
	SourceID       string `json:"sourceId,omitempty"`
	Filename       string `json:"filename,omitempty"`
	Quality        string `json:"quality"`
	Compute        string `json:"compute"`
	TranscriptName string `json:"transcriptName,omitempty"`
	TranscriptRef  string `json:"transcriptRef,omitempty"`
	Running        bool   `json:"running"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	StartedAt      string `json:"startedAt"`
	FinishedAt     string `json:"finishedAt,omitempty"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Items  []JobItem      `json:"items"`
	Counts map[string]int `json:"counts"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newJobItem(entry entrySnapshot) JobItem {
	record := entry.record
	item := JobItem{
		ID:             entry.id,
		Status:         string(record.Status),
		Comment:        record.Comment,
		SourceID:       record.SourceID,
		Filename:       record.SourceRef.Upload.Filename,
		Quality:        record.QualitySetting,
		Compute:        record.ComputeSetting,
		TranscriptName: record.TranscriptName,
		TranscriptRef:  record.TranscriptRef,
		Running:        entry.running,
		StartedAt:      formatTime(entry.startedAt),
		FinishedAt:     formatTime(entry.finishedAt),
	}
	if entry.err != nil {
		item.ErrorMessage = strings.TrimSpace(entry.err.Error())
	}
	return item
}

func newJobList(entries []entrySnapshot) JobListResponse {
	resp := JobListResponse{
		Items:  make([]JobItem, 0, len(entries)),
		Counts: make(map[string]int),
	}
	for _, entry := range entries {
		resp.Items = append(resp.Items, newJobItem(entry))
		resp.Counts[string(entry.record.Status)]++
	}
	// Newest first, ties broken by id for stable output.
	slices.SortFunc(resp.Items, func(a, b JobItem) int {
		if c := strings.Compare(b.StartedAt, a.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return resp
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(dateTimeFormat)
}

// entrySnapshot is a point-in-time copy of a registry entry.
type entrySnapshot struct {
	id         string
	record     tracker.Record
	running    bool
	err        error
	startedAt  time.Time
	finishedAt time.Time
}
