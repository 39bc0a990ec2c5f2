// Package engine defines the speech-to-text contract used by the pipeline
// and selects a concrete engine from configuration.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"scribe/internal/config"
	"scribe/internal/engine/openai"
	"scribe/internal/engine/whisperx"
	"scribe/internal/services"
)

// Engine converts a local audio file into transcript text.
type Engine interface {
	Transcribe(ctx context.Context, audioPath, quality, compute string) (string, error)
}

// Func adapts a function to the Engine interface.
type Func func(ctx context.Context, audioPath, quality, compute string) (string, error)

// Transcribe calls f.
func (f Func) Transcribe(ctx context.Context, audioPath, quality, compute string) (string, error) {
	return f(ctx, audioPath, quality, compute)
}

// ErrTranscriptTooShort marks transcripts below the configured minimum length.
var ErrTranscriptTooShort = errors.New("transcript too short")

// New builds the engine selected by cfg.Transcription.Engine.
func New(cfg *config.Config) (Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine: config is required")
	}
	timeout := time.Duration(cfg.Transcription.TimeoutSeconds) * time.Second
	switch cfg.Transcription.Engine {
	case config.EngineWhisperX:
		return whisperx.New(whisperx.Config{
			CUDAEnabled: cfg.Transcription.WhisperXCUDA,
			VADMethod:   cfg.Transcription.WhisperXVADMethod,
			HFToken:     cfg.Transcription.WhisperXHFToken,
			Language:    cfg.Transcription.WhisperXLanguage,
			Timeout:     timeout,
		}), nil
	case config.EngineOpenAI:
		return openai.New(openai.Config{
			APIKey:  cfg.Transcription.OpenAIAPIKey,
			BaseURL: cfg.Transcription.OpenAIBaseURL,
			Timeout: timeout,
		})
	default:
		return nil, fmt.Errorf("engine: unsupported engine %q", cfg.Transcription.Engine)
	}
}

// CheckTranscript rejects transcripts with fewer than minChars non-blank characters.
func CheckTranscript(text string, minChars int) error {
	count := utf8.RuneCountInString(strings.Join(strings.Fields(text), ""))
	if count < minChars {
		return services.Wrap(services.ErrTranscription, "transcribe", "check transcript",
			fmt.Sprintf("got %d characters, need at least %d", count, minChars), ErrTranscriptTooShort)
	}
	return nil
}
