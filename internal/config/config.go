package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local directory configuration.
type Paths struct {
	StateDir      string `toml:"state_dir"`
	AudioDir      string `toml:"audio_dir"`
	TranscriptDir string `toml:"transcript_dir"`
	LogDir        string `toml:"log_dir"`
}

// Storage selects and configures the blob store backend.
type Storage struct {
	Backend          string `toml:"backend"`
	Root             string `toml:"root"`
	DatabasePath     string `toml:"database_path"`
	AudioFolder      string `toml:"audio_folder"`
	TranscriptFolder string `toml:"transcript_folder"`
}

// Transcription configures the speech-to-text engine and job defaults.
type Transcription struct {
	Engine             string `toml:"engine"`
	Quality            string `toml:"quality"`
	Compute            string `toml:"compute"`
	MinTranscriptChars int    `toml:"min_transcript_chars"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	WhisperXCUDA       bool   `toml:"whisperx_cuda_enabled"`
	WhisperXVADMethod  string `toml:"whisperx_vad_method"`
	WhisperXHFToken    string `toml:"whisperx_hf_token"`
	WhisperXLanguage   string `toml:"whisperx_language"`
	OpenAIAPIKey       string `toml:"openai_api_key"`
	OpenAIBaseURL      string `toml:"openai_base_url"`
}

// Workflow contains pipeline behaviour knobs.
type Workflow struct {
	Concurrency       int  `toml:"concurrency"`
	DeleteAfterUpload bool `toml:"delete_after_upload"`
	RepeatThreshold   int  `toml:"repeat_threshold"`
	SyncRetries       int  `toml:"sync_retries"`
	StrictFields      bool `toml:"strict_fields"`
	MinFreeDiskMiB    int  `toml:"min_free_disk_mib"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// API configures the HTTP request handler.
type API struct {
	Bind         string `toml:"bind"`
	MaxUploadMiB int    `toml:"max_upload_mib"`
}

// Config encapsulates all configuration values for scribe.
//
// Configuration sections by subsystem:
//   - Paths: local audio, transcript, state and log directories
//   - Storage: blob store backend and the audio/transcript folders inside it
//   - Transcription: engine selection, default quality/compute, engine credentials
//   - Workflow: batch concurrency, cleanup, retry and monitoring thresholds
//   - Logging: log format and level
//   - API: HTTP bind address and upload limits
type Config struct {
	Paths         Paths         `toml:"paths"`
	Storage       Storage       `toml:"storage"`
	Transcription Transcription `toml:"transcription"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
	API           API           `toml:"api"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. Values from the
// process environment and a neighbouring .env file are applied before
// validation. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	env, err := loadEnv(filepath.Dir(resolvedPath))
	if err != nil {
		return nil, "", false, err
	}
	cfg.applyEnv(env)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the local directories the pipeline writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Paths.AudioDir, c.Paths.TranscriptDir, c.Paths.LogDir}
	switch c.Storage.Backend {
	case BackendLocal:
		dirs = append(dirs, c.Storage.Root)
	case BackendSQLite:
		dirs = append(dirs, filepath.Dir(c.Storage.DatabasePath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the advisory lock file guarding batch runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "batch.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
