package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStorage()
	c.normalizeTranscription()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	targets := []struct {
		name  string
		value *string
	}{
		{"paths.state_dir", &c.Paths.StateDir},
		{"paths.audio_dir", &c.Paths.AudioDir},
		{"paths.transcript_dir", &c.Paths.TranscriptDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"storage.root", &c.Storage.Root},
		{"storage.database_path", &c.Storage.DatabasePath},
	}
	for _, target := range targets {
		expanded, err := expandPath(strings.TrimSpace(*target.value))
		if err != nil {
			return fmt.Errorf("%s: %w", target.name, err)
		}
		*target.value = expanded
	}
	return nil
}

func (c *Config) normalizeStorage() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendLocal
	}
	c.Storage.AudioFolder = strings.Trim(strings.TrimSpace(c.Storage.AudioFolder), "/")
	c.Storage.TranscriptFolder = strings.Trim(strings.TrimSpace(c.Storage.TranscriptFolder), "/")
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Engine = strings.ToLower(strings.TrimSpace(c.Transcription.Engine))
	if c.Transcription.Engine == "" {
		c.Transcription.Engine = EngineWhisperX
	}
	c.Transcription.Quality = strings.TrimSpace(c.Transcription.Quality)
	c.Transcription.Compute = strings.TrimSpace(c.Transcription.Compute)
	c.Transcription.WhisperXVADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.WhisperXVADMethod))
	if c.Transcription.WhisperXVADMethod == "" {
		c.Transcription.WhisperXVADMethod = defaultVADMethod
	}
	c.Transcription.OpenAIAPIKey = strings.TrimSpace(c.Transcription.OpenAIAPIKey)
	c.Transcription.OpenAIBaseURL = strings.TrimRight(strings.TrimSpace(c.Transcription.OpenAIBaseURL), "/")
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
