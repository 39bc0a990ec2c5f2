package config

import (
	"errors"
	"fmt"
	"strings"

	"scribe/internal/tracker"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateAPI()
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.Root == "" {
			return errors.New("storage.root must be set for the local backend")
		}
	case BackendSQLite:
		if c.Storage.DatabasePath == "" {
			return errors.New("storage.database_path must be set for the sqlite backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (want local, sqlite or memory)", c.Storage.Backend)
	}
	if c.Storage.AudioFolder == "" {
		return errors.New("storage.audio_folder must be set")
	}
	if c.Storage.TranscriptFolder == "" {
		return errors.New("storage.transcript_folder must be set")
	}
	if c.Storage.AudioFolder == c.Storage.TranscriptFolder {
		return errors.New("storage.audio_folder and storage.transcript_folder must differ")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if err := tracker.ValidateQuality(c.Transcription.Quality); err != nil {
		return fmt.Errorf("transcription.quality: %w", err)
	}
	if err := tracker.ValidateCompute(c.Transcription.Compute); err != nil {
		return fmt.Errorf("transcription.compute: %w", err)
	}
	if c.Transcription.MinTranscriptChars < 0 {
		return errors.New("transcription.min_transcript_chars must be >= 0")
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		return errors.New("transcription.timeout_seconds must be positive")
	}
	switch c.Transcription.Engine {
	case EngineWhisperX:
		switch c.Transcription.WhisperXVADMethod {
		case "silero", "pyannote":
		default:
			return fmt.Errorf("transcription.whisperx_vad_method: unsupported value %q", c.Transcription.WhisperXVADMethod)
		}
		if c.Transcription.WhisperXVADMethod == "pyannote" && c.Transcription.WhisperXHFToken == "" {
			return errors.New("transcription.whisperx_hf_token is required for pyannote VAD (or set HF_TOKEN)")
		}
	case EngineOpenAI:
		if c.Transcription.OpenAIAPIKey == "" {
			return errors.New("transcription.openai_api_key is required for the openai engine (or set OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("transcription.engine: unsupported value %q (want whisperx or openai)", c.Transcription.Engine)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Concurrency < 1 {
		return errors.New("workflow.concurrency must be at least 1")
	}
	if c.Workflow.RepeatThreshold < 1 {
		return errors.New("workflow.repeat_threshold must be at least 1")
	}
	if c.Workflow.SyncRetries < 0 {
		return errors.New("workflow.sync_retries must be >= 0")
	}
	if c.Workflow.MinFreeDiskMiB < 0 {
		return errors.New("workflow.min_free_disk_mib must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if strings.TrimSpace(c.API.Bind) == "" {
		return errors.New("api.bind must be set")
	}
	if c.API.MaxUploadMiB <= 0 {
		return errors.New("api.max_upload_mib must be positive")
	}
	return nil
}
