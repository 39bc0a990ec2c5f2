package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"scribe/internal/tracker"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrExternalSync  = errors.New("external sync error")
	ErrTranscription = errors.New("transcription engine error")
)

// ErrorClassifier lets errors declare a kind without wrapping a marker.
// The kind "transient" marks the error as retryable.
type ErrorClassifier interface {
	ErrorKind() string
}

// Wrap joins stage, operation and message into one error tagged with marker
// so errors.Is can classify it later. A nil marker means ErrTransient.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether retrying the failed operation may succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) && classifier.ErrorKind() == "transient" {
		return true
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrExternalSync) || errors.Is(err, ErrTimeout)
}

// FailureStatus maps a pipeline step error to the status the orchestrator
// should persist. Engine errors are terminal even when their cause was a
// timeout or rate limit. ok is false when the job should stay where it is so
// a later advance can retry: cancellation and transient blob store failures.
func FailureStatus(err error) (status tracker.Status, ok bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, ErrTranscription):
		return tracker.StatusTranscriptionFailed, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), IsTransient(err):
		return "", false
	default:
		return tracker.StatusTranscriptionFailed, true
	}
}

func buildDetail(stage, operation, message string) string {
	var parts []string
	for _, part := range [...]string{stage, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if parts == nil {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
