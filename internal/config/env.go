package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// envSource resolves a variable from the process environment first, then
// from values read out of .env files.
type envSource struct {
	dotenv map[string]string
}

func (e envSource) lookup(key string) (string, bool) {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), true
	}
	if value, ok := e.dotenv[key]; ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), true
	}
	return "", false
}

// loadEnv reads .env from the config directory and the working directory.
// Earlier files win. Missing files are ignored.
func loadEnv(configDir string) (envSource, error) {
	candidates := []string{filepath.Join(configDir, ".env")}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".env"))
	}

	merged := make(map[string]string)
	seen := make(map[string]struct{})
	for _, path := range candidates {
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return envSource{}, fmt.Errorf("read %s: %w", path, err)
		}
		for key, value := range values {
			if _, ok := merged[key]; !ok {
				merged[key] = value
			}
		}
	}
	return envSource{dotenv: merged}, nil
}

// applyEnv overlays SCRIBE_* settings and fills blank credentials.
func (c *Config) applyEnv(env envSource) {
	overrides := []struct {
		key    string
		target *string
	}{
		{"SCRIBE_AUDIO_FOLDER", &c.Storage.AudioFolder},
		{"SCRIBE_TRANSCRIPT_FOLDER", &c.Storage.TranscriptFolder},
		{"SCRIBE_STORAGE_BACKEND", &c.Storage.Backend},
		{"SCRIBE_STORAGE_ROOT", &c.Storage.Root},
		{"SCRIBE_AUDIO_DIR", &c.Paths.AudioDir},
		{"SCRIBE_TRANSCRIPT_DIR", &c.Paths.TranscriptDir},
		{"SCRIBE_QUALITY", &c.Transcription.Quality},
		{"SCRIBE_COMPUTE", &c.Transcription.Compute},
		{"SCRIBE_ENGINE", &c.Transcription.Engine},
		{"SCRIBE_LOG_LEVEL", &c.Logging.Level},
	}
	for _, o := range overrides {
		if value, ok := env.lookup(o.key); ok {
			*o.target = value
		}
	}
	if value, ok := env.lookup("SCRIBE_CONCURRENCY"); ok {
		if n, err := strconv.Atoi(value); err == nil {
			c.Workflow.Concurrency = n
		}
	}

	if strings.TrimSpace(c.Transcription.OpenAIAPIKey) == "" {
		if value, ok := env.lookup("OPENAI_API_KEY"); ok {
			c.Transcription.OpenAIAPIKey = value
		}
	}
	if strings.TrimSpace(c.Transcription.WhisperXHFToken) == "" {
		if value, ok := env.lookup("HUGGING_FACE_HUB_TOKEN"); ok {
			c.Transcription.WhisperXHFToken = value
		} else if value, ok := env.lookup("HF_TOKEN"); ok {
			c.Transcription.WhisperXHFToken = value
		}
	}
}
