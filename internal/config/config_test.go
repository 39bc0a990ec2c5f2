package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"scribe/internal/config"
	"scribe/internal/tracker"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	for _, key := range []string{"OPENAI_API_KEY", "HF_TOKEN", "HUGGING_FACE_HUB_TOKEN", "SCRIBE_QUALITY", "SCRIBE_AUDIO_FOLDER", "SCRIBE_ENGINE"} {
		t.Setenv(key, "")
	}
	return home
}

func TestLoadDefaultsExpandPaths(t *testing.T) {
	home := isolate(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	wantAudio := filepath.Join(home, ".local", "share", "scribe", "audio")
	if cfg.Paths.AudioDir != wantAudio {
		t.Fatalf("unexpected audio dir: got %q want %q", cfg.Paths.AudioDir, wantAudio)
	}
	if cfg.Storage.Backend != config.BackendLocal {
		t.Fatalf("unexpected backend %q", cfg.Storage.Backend)
	}
	if cfg.Transcription.Quality != tracker.DefaultQuality || cfg.Transcription.Compute != tracker.DefaultCompute {
		t.Fatalf("unexpected settings %q/%q", cfg.Transcription.Quality, cfg.Transcription.Compute)
	}
	if cfg.Transcription.MinTranscriptChars != 50 {
		t.Fatalf("unexpected min transcript chars %d", cfg.Transcription.MinTranscriptChars)
	}
	if cfg.LockPath() != filepath.Join(cfg.Paths.StateDir, "batch.lock") {
		t.Fatalf("unexpected lock path %q", cfg.LockPath())
	}
}

func TestLoadReadsTOML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "scribe.toml")

	cfg := config.Default()
	cfg.Storage.Backend = config.BackendSQLite
	cfg.Storage.AudioFolder = "/mp3s/"
	cfg.Transcription.Quality = "small.en"
	cfg.Transcription.Compute = "float32"
	cfg.Workflow.Concurrency = 4
	cfg.Logging.Format = "JSON"
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution %q %v", resolved, exists)
	}
	if loaded.Storage.Backend != config.BackendSQLite {
		t.Fatalf("backend = %q", loaded.Storage.Backend)
	}
	if loaded.Storage.AudioFolder != "mp3s" {
		t.Fatalf("audio folder not trimmed: %q", loaded.Storage.AudioFolder)
	}
	if loaded.Transcription.Quality != "small.en" || loaded.Transcription.Compute != "float32" {
		t.Fatalf("settings = %q/%q", loaded.Transcription.Quality, loaded.Transcription.Compute)
	}
	if loaded.Workflow.Concurrency != 4 {
		t.Fatalf("concurrency = %d", loaded.Workflow.Concurrency)
	}
	if loaded.Logging.Format != "json" {
		t.Fatalf("format not normalized: %q", loaded.Logging.Format)
	}
}

func TestDotEnvOverlay(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	env := "SCRIBE_AUDIO_FOLDER=incoming\nSCRIBE_QUALITY=base.en\nOPENAI_API_KEY=sk-test\nSCRIBE_ENGINE=openai\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.AudioFolder != "incoming" {
		t.Fatalf("audio folder = %q", cfg.Storage.AudioFolder)
	}
	if cfg.Transcription.Quality != "base.en" {
		t.Fatalf("quality = %q", cfg.Transcription.Quality)
	}
	if cfg.Transcription.Engine != config.EngineOpenAI || cfg.Transcription.OpenAIAPIKey != "sk-test" {
		t.Fatalf("engine = %q key = %q", cfg.Transcription.Engine, cfg.Transcription.OpenAIAPIKey)
	}
}

func TestProcessEnvWinsOverDotEnv(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SCRIBE_AUDIO_FOLDER=from-file\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("SCRIBE_AUDIO_FOLDER", "from-env")

	cfg, _, _, err := config.Load(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.AudioFolder != "from-env" {
		t.Fatalf("audio folder = %q", cfg.Storage.AudioFolder)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"quality", func(c *config.Config) { c.Transcription.Quality = "huge" }, "transcription.quality"},
		{"compute", func(c *config.Config) { c.Transcription.Compute = "int8" }, "transcription.compute"},
		{"backend", func(c *config.Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"engine", func(c *config.Config) { c.Transcription.Engine = "vosk" }, "transcription.engine"},
		{"openai key", func(c *config.Config) { c.Transcription.Engine = config.EngineOpenAI }, "openai_api_key"},
		{"same folders", func(c *config.Config) { c.Storage.TranscriptFolder = c.Storage.AudioFolder }, "must differ"},
		{"concurrency", func(c *config.Config) { c.Workflow.Concurrency = 0 }, "workflow.concurrency"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"pyannote token", func(c *config.Config) { c.Transcription.WhisperXVADMethod = "pyannote" }, "whisperx_hf_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Storage.TranscriptFolder != "transcripts" {
		t.Fatalf("transcript folder = %q", cfg.Storage.TranscriptFolder)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.AudioDir = filepath.Join(base, "audio")
	cfg.Paths.TranscriptDir = filepath.Join(base, "transcripts")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Storage.Root = filepath.Join(base, "blobs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.AudioDir, cfg.Paths.TranscriptDir, cfg.Paths.LogDir, cfg.Storage.Root} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
