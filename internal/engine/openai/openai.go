// Package openai transcribes audio with the hosted Whisper API.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"scribe/internal/services"
	"scribe/internal/tracker"
)

// Config carries API credentials and limits.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Engine calls the audio transcription endpoint.
type Engine struct {
	client  *openai.Client
	timeout time.Duration
}

// New creates an engine. The API key is required.
func New(cfg Config) (*Engine, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "openai", "missing API key", nil)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Engine{client: openai.NewClientWithConfig(clientCfg), timeout: cfg.Timeout}, nil
}

// Transcribe uploads audioPath and returns the plain-text transcript. The
// hosted model is fixed, so quality and compute are validated only.
func (e *Engine) Transcribe(ctx context.Context, audioPath, quality, compute string) (string, error) {
	if err := tracker.ValidateQuality(quality); err != nil {
		return "", services.Wrap(services.ErrValidation, "transcribe", "openai", "quality", err)
	}
	if err := tracker.ValidateCompute(compute); err != nil {
		return "", services.Wrap(services.ErrValidation, "transcribe", "openai", "compute", err)
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		return "", classify(err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "transcribe", "openai", "request timed out", err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && retryableStatus(apiErr.HTTPStatusCode) {
		return services.Wrap(services.ErrTransient, "transcribe", "openai", "service unavailable", err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && retryableStatus(reqErr.HTTPStatusCode) {
		return services.Wrap(services.ErrTransient, "transcribe", "openai", "service unavailable", err)
	}
	return services.Wrap(services.ErrTranscription, "transcribe", "openai", "create transcription", err)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
