package tracker

import "strings"

// Status represents the lifecycle position of a transcription job.
type Status string

const (
	StatusNotStarted                  Status = "NOT_STARTED"
	StatusStart                       Status = "START"
	StatusAudioUploaded               Status = "MP3_UPLOADED"
	StatusAudioDownloaded             Status = "MP3_DOWNLOADED"
	StatusTranscribing                Status = "TRANSCRIBING"
	StatusTranscriptionComplete       Status = "TRANSCRIPTION_COMPLETE"
	StatusTranscriptionUploadComplete Status = "TRANSCRIPTION_UPLOAD_COMPLETE"
	StatusTranscriptionFailed         Status = "TRANSCRIPTION_FAILED"
)

// lifecycle is the linear happy path; TRANSCRIPTION_FAILED is a side exit.
var lifecycle = []Status{
	StatusNotStarted,
	StatusStart,
	StatusAudioUploaded,
	StatusAudioDownloaded,
	StatusTranscribing,
	StatusTranscriptionComplete,
	StatusTranscriptionUploadComplete,
}

var allStatuses = append(append([]Status{}, lifecycle...), StatusTranscriptionFailed)

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var lifecycleIndex = func() map[Status]int {
	index := make(map[Status]int, len(lifecycle))
	for i, status := range lifecycle {
		index[status] = i
	}
	return index
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status. Both the persisted
// form ("TRANSCRIPTION_COMPLETE") and the display form
// ("transcription complete") are accepted, case-insensitively.
func ParseStatus(value string) (Status, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	if normalized == "" {
		return "", false
	}
	status := Status(normalized)
	_, ok := statusSet[status]
	return status, ok
}

// Valid reports whether s is a member of the lifecycle enumeration.
func (s Status) Valid() bool {
	_, ok := statusSet[s]
	return ok
}

// IsTerminal reports whether no further transition occurs from s.
func (s Status) IsTerminal() bool {
	return s == StatusTranscriptionUploadComplete || s == StatusTranscriptionFailed
}

// InProgress reports whether s is a started, non-terminal status.
func (s Status) InProgress() bool {
	return s.Valid() && s != StatusNotStarted && !s.IsTerminal()
}

// Next returns the happy-path successor of s. Terminal and unknown statuses
// have none.
func (s Status) Next() (Status, bool) {
	i, ok := lifecycleIndex[s]
	if !ok || i+1 >= len(lifecycle) {
		return "", false
	}
	return lifecycle[i+1], true
}

// DisplayName renders the status for humans ("transcription complete").
func (s Status) DisplayName() string {
	return strings.ToLower(strings.ReplaceAll(string(s), "_", " "))
}

type statusTransition struct {
	from Status
	to   Status
}

// rollbackTransitions are the backward moves the pipeline makes when a
// resumed job finds its local artifacts gone.
var rollbackTransitions = []statusTransition{
	{from: StatusTranscribing, to: StatusAudioUploaded},
	{from: StatusTranscriptionComplete, to: StatusAudioUploaded},
}

// CanTransition reports whether moving from one status to another follows the
// lifecycle graph. Staying put is always allowed, failure is reachable from
// any in-progress status and NOT_STARTED is reachable from anywhere (reset).
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	for _, rollback := range rollbackTransitions {
		if rollback.from == from && rollback.to == to {
			return true
		}
	}
	switch {
	case from == to:
		return true
	case to == StatusNotStarted:
		return true
	case to == StatusTranscriptionFailed:
		return from.InProgress()
	case from.IsTerminal():
		return false
	}
	return lifecycleIndex[to] > lifecycleIndex[from]
}
