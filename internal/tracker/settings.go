package tracker

import (
	"slices"
	"strings"
)

const (
	// DefaultQuality is the quality key new jobs use when none is configured.
	DefaultQuality = "distil-large-v2"
	// DefaultCompute is the compute key new jobs use when none is configured.
	DefaultCompute = "float16"
	// defaultKey is accepted in both tables and resolves to the defaults above.
	defaultKey = "default"
)

// QualityModels maps quality keys to speech model identifiers.
var QualityModels = map[string]string{
	defaultKey:         "distil-whisper/distil-large-v2",
	"tiny":             "openai/whisper-tiny",
	"tiny.en":          "openai/whisper-tiny.en",
	"base":             "openai/whisper-base",
	"base.en":          "openai/whisper-base.en",
	"small":            "openai/whisper-small",
	"small.en":         "openai/whisper-small.en",
	"medium":           "openai/whisper-medium",
	"medium.en":        "openai/whisper-medium.en",
	"large":            "openai/whisper-large",
	"large-v2":         "openai/whisper-large-v2",
	"distil-large-v2":  "distil-whisper/distil-large-v2",
	"distil-medium.en": "distil-whisper/distil-medium.en",
	"distil-small.en":  "distil-whisper/distil-small.en",
}

// ComputeTypes maps compute keys to the numeric precision handed to engines.
var ComputeTypes = map[string]string{
	defaultKey: "float16",
	"float16":  "float16",
	"float32":  "float32",
}

// NormalizeQuality maps "default", blank and unknown keys to DefaultQuality.
func NormalizeQuality(key string) string {
	return normalizeKey(key, DefaultQuality, QualityModels)
}

// NormalizeCompute maps "default", blank and unknown keys to DefaultCompute.
func NormalizeCompute(key string) string {
	return normalizeKey(key, DefaultCompute, ComputeTypes)
}

// QualityModel returns the model identifier for a quality key.
func QualityModel(key string) string {
	return QualityModels[NormalizeQuality(key)]
}

// ComputeType returns the precision for a compute key.
func ComputeType(key string) string {
	return ComputeTypes[NormalizeCompute(key)]
}

// SettingKeys returns the sorted keys of a settings table.
func SettingKeys(table map[string]string) []string {
	keys := make([]string, 0, len(table))
	for key := range table {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func normalizeKey(key, fallback string, table map[string]string) string {
	key = strings.TrimSpace(key)
	if key == "" || key == defaultKey {
		return fallback
	}
	if _, ok := table[key]; !ok {
		return fallback
	}
	return key
}
