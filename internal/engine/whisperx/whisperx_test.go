package whisperx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"scribe/internal/services"
)

func flagValue(args []string, flag string) string {
	idx := slices.Index(args, flag)
	if idx < 0 || idx+1 >= len(args) {
		return ""
	}
	return args[idx+1]
}

func TestTranscribeReadsTextOutput(t *testing.T) {
	var captured []string
	eng := New(Config{Language: "en"}).WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		if name != UVXCommand {
			t.Fatalf("unexpected command %q", name)
		}
		captured = args
		outDir := flagValue(args, "--output_dir")
		return os.WriteFile(filepath.Join(outDir, "lecture.txt"), []byte("  the quick brown fox\n"), 0o644)
	})

	text, err := eng.Transcribe(context.Background(), "/tmp/audio/lecture.mp3", "small.en", "float16")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "the quick brown fox" {
		t.Fatalf("text = %q", text)
	}
	if got := flagValue(captured, "--model"); got != "small.en" {
		t.Fatalf("model = %q", got)
	}
	if got := flagValue(captured, "--output_format"); got != "txt" {
		t.Fatalf("output format = %q", got)
	}
	if got := flagValue(captured, "--language"); got != "en" {
		t.Fatalf("language = %q", got)
	}
	if got := flagValue(captured, "--compute_type"); got != CPUComputeType {
		t.Fatalf("CPU runs must use %s, got %q", CPUComputeType, got)
	}
}

func TestBuildArgsCUDA(t *testing.T) {
	eng := New(Config{CUDAEnabled: true, VADMethod: VADMethodPyannote, HFToken: "hf_abc"})
	args := eng.buildArgs("a.mp3", "/out", "default", "float16")

	if flagValue(args, "--device") != CUDADevice {
		t.Fatalf("expected cuda device: %v", args)
	}
	if flagValue(args, "--compute_type") != "float16" {
		t.Fatalf("expected float16 compute: %v", args)
	}
	if flagValue(args, "--model") != "distil-large-v2" {
		t.Fatalf("default quality should resolve to distil-large-v2: %v", args)
	}
	if flagValue(args, "--hf_token") != "hf_abc" {
		t.Fatalf("expected hf token for pyannote: %v", args)
	}
	if flagValue(args, "--extra-index-url") != PypiIndexURL {
		t.Fatalf("expected pypi extra index: %v", args)
	}
}

func TestTranscribeWrapsRunnerFailure(t *testing.T) {
	eng := New(Config{}).WithCommandRunner(func(context.Context, string, ...string) error {
		return errors.New("exit status 1")
	})
	_, err := eng.Transcribe(context.Background(), "clip.mp3", "tiny", "float32")
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
	if !strings.Contains(err.Error(), "exit status 1") {
		t.Fatalf("cause missing: %v", err)
	}
}

func TestTranscribeMissingOutput(t *testing.T) {
	eng := New(Config{}).WithCommandRunner(func(context.Context, string, ...string) error { return nil })
	if _, err := eng.Transcribe(context.Background(), "clip.mp3", "tiny", "float32"); !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
}

func TestTranscribeRejectsInvalidSettings(t *testing.T) {
	eng := New(Config{}).WithCommandRunner(func(context.Context, string, ...string) error {
		t.Fatal("runner must not be called")
		return nil
	})
	if _, err := eng.Transcribe(context.Background(), "clip.mp3", "huge", "float16"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := eng.Transcribe(context.Background(), "clip.mp3", "tiny", "int8"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
