package preflight

import (
	"context"

	"scribe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check applicable to cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Audio directory", cfg.Paths.AudioDir),
		CheckDirectoryAccess("Transcript directory", cfg.Paths.TranscriptDir),
		CheckDiskSpace("Audio disk space", cfg.Paths.AudioDir, MiB(cfg.Workflow.MinFreeDiskMiB)),
	}

	if cfg.Storage.Backend == config.BackendLocal {
		results = append(results, CheckDirectoryAccess("Blob store root", cfg.Storage.Root))
	}

	switch cfg.Transcription.Engine {
	case config.EngineWhisperX:
		results = append(results, CheckBinary(ctx, "uvx", "uvx", "Required for WhisperX transcription"))
	case config.EngineOpenAI:
		results = append(results, CheckCredential("OpenAI API key", cfg.Transcription.OpenAIAPIKey))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
