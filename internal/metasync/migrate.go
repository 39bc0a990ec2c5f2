package metasync

import (
	"log/slog"
	"slices"

	"scribe/internal/logging"
	"scribe/internal/tracker"
)

// legacyKeys maps metadata keys written by earlier releases to current field
// names. An empty target means the key is dropped.
var legacyKeys = map[string]string{
	"mp3_gfile_id":               tracker.FieldSourceID,
	"transcript_gdrive_id":       tracker.FieldTranscriptRef,
	"transcript_gdrive_filename": tracker.FieldTranscriptName,
	"transcript_audio_quality":   tracker.FieldQualitySetting,
	"transcript_compute_type":    tracker.FieldComputeSetting,
	"input_mp3":                  tracker.FieldSourceRef,
	"local_mp3_path":             "",
	"local_transcript_path":      "",
}

// normalizeFields strips local-only keys, renames legacy keys, and drops
// keys that are not record fields. Current names win over legacy ones.
func normalizeFields(raw map[string]any, logger *slog.Logger) map[string]any {
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		if slices.Contains(tracker.LocalOnlyFields, key) {
			continue
		}
		if tracker.IsField(key) {
			out[key] = value
		}
	}
	for key, value := range raw {
		if tracker.IsField(key) {
			continue
		}
		target, legacy := legacyKeys[key]
		switch {
		case !legacy:
			logger.Debug("ignoring unknown metadata key", logging.String("key", key))
		case target == "":
		case target == tracker.FieldSourceRef:
			if _, exists := out[target]; !exists {
				out[target] = legacySourceRef(value)
			}
		default:
			if _, exists := out[target]; !exists {
				out[target] = value
			}
		}
	}
	return out
}

// legacySourceRef unwraps the {"gdrive_id": ...} object older records used.
func legacySourceRef(value any) any {
	if obj, ok := value.(map[string]any); ok {
		if id, ok := obj["gdrive_id"].(string); ok {
			return id
		}
	}
	return value
}
