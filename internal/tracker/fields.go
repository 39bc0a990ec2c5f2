package tracker

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"scribe/internal/textutil"
)

// Persisted and local-only field names, as they appear in metadata JSON.
const (
	FieldStatus         = "status"
	FieldComment        = "comment"
	FieldSourceRef      = "source_ref"
	FieldSourceID       = "source_id"
	FieldLocalAudioPath = "local_audio_path"
	FieldQualitySetting = "quality_setting"
	FieldComputeSetting = "compute_setting"
	FieldTranscriptRef  = "transcript_ref"
	FieldTranscriptName = "transcript_name"
)

// DefaultFieldCutoff is the minimum similarity for approximate field names.
const DefaultFieldCutoff = 0.6

var fieldNames = []string{
	FieldStatus,
	FieldComment,
	FieldSourceRef,
	FieldSourceID,
	FieldLocalAudioPath,
	FieldQualitySetting,
	FieldComputeSetting,
	FieldTranscriptRef,
	FieldTranscriptName,
}

var fieldSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(fieldNames))
	for _, name := range fieldNames {
		set[name] = struct{}{}
	}
	return set
}()

// LocalOnlyFields are never written to, or adopted from, blob store metadata.
var LocalOnlyFields = []string{FieldLocalAudioPath}

// FieldNames returns every record field name.
func FieldNames() []string {
	cp := make([]string, len(fieldNames))
	copy(cp, fieldNames)
	return cp
}

// IsField reports whether name is an exact record field name.
func IsField(name string) bool {
	_, ok := fieldSet[name]
	return ok
}

// resolution describes how a caller-supplied key mapped onto a field.
type resolution struct {
	field       string
	approximate bool
	score       float64
}

func normalizeFieldKey(key string) string {
	folded := cases.Fold().String(strings.TrimSpace(key))
	return strings.NewReplacer("-", "_", " ", "_").Replace(folded)
}

func resolveField(key string, cutoff float64, strict bool) (resolution, error) {
	normalized := normalizeFieldKey(key)
	if IsField(normalized) {
		return resolution{field: normalized, score: 1}, nil
	}
	if strict {
		return resolution{}, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	match, score, ambiguous := textutil.ClosestMatch(normalized, fieldNames, cutoff)
	if ambiguous {
		return resolution{}, fmt.Errorf("%w: %q matches more than one field", ErrUnknownField, key)
	}
	if match == "" {
		return resolution{}, fmt.Errorf("%w: %q has no similar field", ErrUnknownField, key)
	}
	return resolution{field: match, approximate: true, score: score}, nil
}

func setField(r *Record, field string, value any) error {
	switch field {
	case FieldStatus:
		status, err := coerceStatus(value)
		if err != nil {
			return err
		}
		r.Status = status
	case FieldSourceRef:
		ref, err := coerceSourceRef(value)
		if err != nil {
			return err
		}
		r.SourceRef = ref
	default:
		text, err := coerceString(field, value)
		if err != nil {
			return err
		}
		switch field {
		case FieldComment:
			r.Comment = text
		case FieldSourceID:
			r.SourceID = text
		case FieldLocalAudioPath:
			r.LocalAudioPath = text
		case FieldQualitySetting:
			r.QualitySetting = text
		case FieldComputeSetting:
			r.ComputeSetting = text
		case FieldTranscriptRef:
			r.TranscriptRef = text
		case FieldTranscriptName:
			r.TranscriptName = text
		default:
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
	}
	return nil
}

func getField(r Record, field string) (any, error) {
	switch field {
	case FieldStatus:
		return r.Status, nil
	case FieldComment:
		return r.Comment, nil
	case FieldSourceRef:
		return r.SourceRef, nil
	case FieldSourceID:
		return r.SourceID, nil
	case FieldLocalAudioPath:
		return r.LocalAudioPath, nil
	case FieldQualitySetting:
		return r.QualitySetting, nil
	case FieldComputeSetting:
		return r.ComputeSetting, nil
	case FieldTranscriptRef:
		return r.TranscriptRef, nil
	case FieldTranscriptName:
		return r.TranscriptName, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}

func coerceStatus(value any) (Status, error) {
	switch v := value.(type) {
	case Status:
		if err := ValidateStatus(v); err != nil {
			return "", err
		}
		return v, nil
	case string:
		status, ok := ParseStatus(v)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrInvalidState, v)
		}
		return status, nil
	default:
		return "", fmt.Errorf("%w: status must be a string, got %T", ErrInvalidState, value)
	}
}

func coerceSourceRef(value any) (SourceRef, error) {
	switch v := value.(type) {
	case nil:
		return SourceRef{}, nil
	case SourceRef:
		return v, nil
	case string:
		return ExternalSource(v), nil
	case map[string]any:
		name, _ := v["filename"].(string)
		if strings.TrimSpace(name) == "" {
			return SourceRef{}, fmt.Errorf("%w: source_ref upload without filename", ErrInvalidValue)
		}
		size, _ := v["size"].(float64)
		return UploadSource(name, "", int64(size)), nil
	default:
		return SourceRef{}, fmt.Errorf("%w: source_ref of type %T", ErrInvalidValue, value)
	}
}

func coerceString(field string, value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case *string:
		if v == nil {
			return "", nil
		}
		return *v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidValue, field, value)
	}
}
