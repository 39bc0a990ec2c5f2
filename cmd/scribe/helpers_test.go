package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"scribe/internal/config"
	"scribe/internal/engine"
)

const stubTranscript = "Thanks for joining. This episode walks through the whole transcription workflow end to end."

type cliTestEnv struct {
	cfg        config.Config
	configPath string
	baseDir    string
}

// setupCLITestEnv writes a config using the local blob store under a temp
// dir and replaces the engine with a stub.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Chdir(base)
	for _, key := range []string{
		"SCRIBE_AUDIO_FOLDER", "SCRIBE_TRANSCRIPT_FOLDER", "SCRIBE_STORAGE_BACKEND",
		"SCRIBE_STORAGE_ROOT", "SCRIBE_AUDIO_DIR", "SCRIBE_TRANSCRIPT_DIR",
		"SCRIBE_QUALITY", "SCRIBE_COMPUTE", "SCRIBE_ENGINE", "SCRIBE_LOG_LEVEL",
		"SCRIBE_CONCURRENCY", "OPENAI_API_KEY",
	} {
		t.Setenv(key, "")
	}

	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.AudioDir = filepath.Join(base, "audio")
	cfg.Paths.TranscriptDir = filepath.Join(base, "transcripts")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Storage.Backend = config.BackendLocal
	cfg.Storage.Root = filepath.Join(base, "blobs")
	cfg.Transcription.Engine = config.EngineOpenAI
	cfg.Transcription.OpenAIAPIKey = "sk-test"
	cfg.Workflow.MinFreeDiskMiB = 0
	cfg.Logging.Level = "error"

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	configPath := filepath.Join(base, "config.toml")
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	stubEngine(t, func(context.Context, string, string, string) (string, error) {
		return stubTranscript, nil
	})
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func stubEngine(t *testing.T, fn engine.Func) {
	t.Helper()
	previous := newEngine
	newEngine = func(*config.Config) (engine.Engine, error) { return fn, nil }
	t.Cleanup(func() { newEngine = previous })
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeAudio(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x55}, 4096), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
