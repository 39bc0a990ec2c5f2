package tracker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// UploadHandle describes audio handed to the system directly rather than
// found in the blob store. Path is local-only and never persisted.
type UploadHandle struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size,omitempty"`
	Path     string `json:"-"`
}

// SourceRef records where a job's audio came from: either an existing blob
// store reference or a raw upload.
type SourceRef struct {
	ExternalID string
	Upload     UploadHandle
}

// ExternalSource references audio already present in the blob store.
func ExternalSource(ref string) SourceRef {
	return SourceRef{ExternalID: strings.TrimSpace(ref)}
}

// UploadSource references a local file that still needs uploading.
func UploadSource(filename, path string, size int64) SourceRef {
	return SourceRef{Upload: UploadHandle{Filename: filename, Path: path, Size: size}}
}

// IsZero reports whether no source is set.
func (s SourceRef) IsZero() bool {
	return s.ExternalID == "" && s.Upload.Filename == ""
}

// IsUpload reports whether the source is a raw upload.
func (s SourceRef) IsUpload() bool {
	return s.ExternalID == "" && s.Upload.Filename != ""
}

func (s SourceRef) String() string {
	switch {
	case s.ExternalID != "":
		return s.ExternalID
	case s.Upload.Filename != "":
		return "upload:" + s.Upload.Filename
	default:
		return ""
	}
}

// MarshalJSON encodes external sources as a string and uploads as an object.
func (s SourceRef) MarshalJSON() ([]byte, error) {
	switch {
	case s.ExternalID != "":
		return json.Marshal(s.ExternalID)
	case s.Upload.Filename != "":
		return json.Marshal(s.Upload)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, a string reference or an upload object.
func (s *SourceRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*s = SourceRef{}
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		var ref string
		if err := json.Unmarshal(data, &ref); err != nil {
			return err
		}
		*s = ExternalSource(ref)
		return nil
	case data[0] == '{':
		var upload UploadHandle
		if err := json.Unmarshal(data, &upload); err != nil {
			return err
		}
		if strings.TrimSpace(upload.Filename) == "" {
			return errors.New("upload source without filename")
		}
		s.Upload = upload
		return nil
	default:
		return fmt.Errorf("unsupported source_ref encoding %s", string(data))
	}
}

// Record is the full state of one transcription job.
type Record struct {
	Status         Status    `json:"status"`
	Comment        string    `json:"comment,omitempty"`
	SourceRef      SourceRef `json:"source_ref,omitzero"`
	SourceID       string    `json:"source_id,omitempty"`
	LocalAudioPath string    `json:"-"`
	QualitySetting string    `json:"quality_setting"`
	ComputeSetting string    `json:"compute_setting"`
	TranscriptRef  string    `json:"transcript_ref,omitempty"`
	TranscriptName string    `json:"transcript_name,omitempty"`
}

// NewRecord returns a NOT_STARTED record using the given setting keys.
// Blank keys fall back to the package defaults.
func NewRecord(quality, compute string) Record {
	return Record{
		Status:         StatusNotStarted,
		QualitySetting: NormalizeQuality(quality),
		ComputeSetting: NormalizeCompute(compute),
	}
}

// Validate checks every field invariant.
func (r Record) Validate() error {
	var errs []error
	if err := ValidateStatus(r.Status); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateQuality(r.QualitySetting); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateCompute(r.ComputeSetting); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateLocalPath(r.LocalAudioPath); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Persisted returns a copy with local-only fields cleared.
func (r Record) Persisted() Record {
	r.LocalAudioPath = ""
	r.SourceRef.Upload.Path = ""
	return r
}

// Encode renders the persisted form written to blob store metadata.
func (r Record) Encode() (string, error) {
	data, err := json.Marshal(r.Persisted())
	if err != nil {
		return "", fmt.Errorf("encode tracker record: %w", err)
	}
	return string(data), nil
}

// SetFailed moves the record to TRANSCRIPTION_FAILED with message as comment.
func (r *Record) SetFailed(message string) {
	r.Status = StatusTranscriptionFailed
	r.Comment = message
}

// Advance moves the record to status with a comment, rejecting moves the
// lifecycle graph does not allow.
func (r *Record) Advance(status Status, comment string) error {
	if !CanTransition(r.Status, status) {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, r.Status, status)
	}
	r.Status = status
	r.Comment = comment
	return nil
}
