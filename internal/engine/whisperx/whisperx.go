// Package whisperx transcribes audio by running WhisperX through uvx.
package whisperx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"scribe/internal/services"
	"scribe/internal/tracker"
)

// WhisperX invocation constants.
const (
	UVXCommand        = "uvx"
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	BatchSize         = "8"
	ChunkSize         = "30"
	OutputFormat      = "txt"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "float32"
	VADMethodPyannote = "pyannote"
	VADMethodSilero   = "silero"
)

// Config captures runtime settings for WhisperX runs.
type Config struct {
	CUDAEnabled bool
	// VADMethod selects voice activity detection ("silero" or "pyannote").
	VADMethod string
	// HFToken is the Hugging Face token pyannote needs.
	HFToken  string
	Language string
	// Timeout bounds a single run. Zero means no limit.
	Timeout time.Duration
}

// Runner executes an external command.
type Runner func(ctx context.Context, name string, args ...string) error

// Engine runs WhisperX as an external process.
type Engine struct {
	cfg    Config
	runner Runner
}

// New creates a WhisperX engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Engine) WithCommandRunner(runner Runner) *Engine {
	e.runner = runner
	return e
}

func (e *Engine) run(ctx context.Context, name string, args ...string) error {
	if e.runner != nil {
		return e.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Transcribe runs WhisperX on audioPath and returns the plain-text transcript.
func (e *Engine) Transcribe(ctx context.Context, audioPath, quality, compute string) (string, error) {
	if strings.TrimSpace(audioPath) == "" {
		return "", services.Wrap(services.ErrValidation, "transcribe", "whisperx", "audio path required", nil)
	}
	if err := tracker.ValidateQuality(quality); err != nil {
		return "", services.Wrap(services.ErrValidation, "transcribe", "whisperx", "quality", err)
	}
	if err := tracker.ValidateCompute(compute); err != nil {
		return "", services.Wrap(services.ErrValidation, "transcribe", "whisperx", "compute", err)
	}

	outputDir, err := os.MkdirTemp("", "scribe-whisperx-")
	if err != nil {
		return "", services.Wrap(services.ErrTranscription, "transcribe", "whisperx", "create output dir", err)
	}
	defer os.RemoveAll(outputDir)

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	args := e.buildArgs(audioPath, outputDir, quality, compute)
	if err := e.run(ctx, UVXCommand, args...); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "transcribe", "whisperx", "run exceeded timeout", err)
		}
		return "", services.Wrap(services.ErrTranscription, "transcribe", "whisperx", "run", err)
	}

	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	data, err := os.ReadFile(filepath.Join(outputDir, stem+".txt"))
	if err != nil {
		return "", services.Wrap(services.ErrTranscription, "transcribe", "whisperx", "read transcript", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Model returns the WhisperX model name for a quality key. WhisperX takes
// the short model names rather than hub repository ids.
func Model(quality string) string {
	return tracker.NormalizeQuality(quality)
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (e *Engine) buildArgs(source, outputDir, quality, compute string) []string {
	args := make([]string, 0, 24)

	if e.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", Model(quality),
		"--batch_size", BatchSize,
		"--chunk_size", ChunkSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
	)

	vadMethod := e.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && e.cfg.HFToken != "" {
		args = append(args, "--hf_token", e.cfg.HFToken)
	}

	if lang := strings.TrimSpace(e.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}

	// CTranslate2 has no float16 kernels on CPU.
	if e.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice, "--compute_type", tracker.ComputeType(compute))
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}
