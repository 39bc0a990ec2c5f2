package workflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"scribe/internal/blobstore"
	"scribe/internal/services"
	"scribe/internal/testsupport"
	"scribe/internal/tracker"
	"scribe/internal/workflow"
)

func TestProcessFolderRunsPendingFiles(t *testing.T) {
	h := newHarness(t, testsupport.WithDeleteAfterUpload(true))
	h.cfg.Workflow.Concurrency = 2
	ctx := context.Background()

	done := h.putAudio("finished.mp3")
	finishedJob, _ := h.runner.BeginJob(ctx, tracker.ExternalSource(done))
	if _, err := h.runner.Run(ctx, finishedJob); err != nil {
		t.Fatalf("Run: %v", err)
	}
	pending := []string{h.putAudio("one.mp3"), h.putAudio("two.mp3"), h.putAudio("three.mp3")}

	runner := workflow.NewRunner(h.cfg, h.blobs, h.engine, nil)
	summary, err := runner.ProcessFolder(ctx, h.cfg.Storage.AudioFolder)
	if err != nil {
		t.Fatalf("ProcessFolder: %v", err)
	}
	if summary.Total != 4 || summary.Completed != 3 || summary.Skipped != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Deleted != 4 {
		t.Fatalf("deleted = %d, want 4", summary.Deleted)
	}
	for _, ref := range append(pending, done) {
		if _, ok := h.blobs.Content(ref); ok {
			t.Fatalf("audio blob %s should have been deleted", ref)
		}
	}
	transcripts, err := h.blobs.List(ctx, h.cfg.Storage.TranscriptFolder)
	if err != nil || len(transcripts) != 4 {
		t.Fatalf("transcripts = %v, %v", transcripts, err)
	}
	for _, name := range []string{"one.mp3", "two.mp3", "three.mp3"} {
		if copies := localCopies(t, h.cfg.Paths.AudioDir, name); len(copies) != 0 {
			t.Fatalf("local copy of %s left behind: %v", name, copies)
		}
	}
}

func TestProcessFolderKeepsAudioByDefault(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	good := h.putAudio("good.mp3")
	bad := h.putAudio("bad.mp3")
	h.engine.fn = func(_ context.Context, path, _, _ string) (string, error) {
		if strings.HasSuffix(path, "bad.mp3") {
			return "", services.Wrap(services.ErrTranscription, "transcribe", "stub", "decoder crashed", nil)
		}
		return sampleTranscript, nil
	}

	summary, err := h.runner.ProcessFolder(ctx, h.cfg.Storage.AudioFolder)
	if err != nil {
		t.Fatalf("ProcessFolder: %v", err)
	}
	if summary.Completed != 1 || summary.Failed != 1 || summary.Deleted != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	for _, ref := range []string{good, bad} {
		if _, ok := h.blobs.Content(ref); !ok {
			t.Fatalf("audio blob %s was deleted", ref)
		}
	}
	if got := h.metadataStatus(t, bad); got != string(tracker.StatusTranscriptionFailed) {
		t.Fatalf("bad file status = %s", got)
	}

	// A second pass leaves the failed file alone and skips the finished one.
	calls := h.engine.Calls()
	again, err := h.runner.ProcessFolder(ctx, h.cfg.Storage.AudioFolder)
	if err != nil {
		t.Fatalf("second ProcessFolder: %v", err)
	}
	if again.Skipped != 1 || again.Failed != 1 || h.engine.Calls() != calls {
		t.Fatalf("second pass %+v after %d new engine calls", again, h.engine.Calls()-calls)
	}
}

// unreachableTranscripts fails every upload into the transcript folder.
type unreachableTranscripts struct {
	*blobstore.Memory
	folder string
}

func (u unreachableTranscripts) Upload(ctx context.Context, folder, localPath string) (string, error) {
	if folder == u.folder {
		return "", errors.New("503 service unavailable")
	}
	return u.Memory.Upload(ctx, folder, localPath)
}

func TestProcessFolderDefersTransientFailures(t *testing.T) {
	h := newHarness(t)
	h.cfg.Workflow.SyncRetries = 0
	ctx := context.Background()
	ref := h.putAudio("later.mp3")
	blobs := unreachableTranscripts{Memory: h.blobs, folder: h.cfg.Storage.TranscriptFolder}
	runner := workflow.NewRunner(h.cfg, blobs, h.engine, nil)

	summary, err := runner.ProcessFolder(ctx, h.cfg.Storage.AudioFolder)
	if err != nil {
		t.Fatalf("ProcessFolder: %v", err)
	}
	if summary.Deferred != 1 || len(summary.Results) != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if res := summary.Results[0]; !errors.Is(res.Err, services.ErrExternalSync) || res.Status != tracker.StatusTranscriptionComplete {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := h.metadataStatus(t, ref); got != string(tracker.StatusTranscriptionComplete) {
		t.Fatalf("persisted status = %s", got)
	}

	again, err := h.runner.ProcessFolder(ctx, h.cfg.Storage.AudioFolder)
	if err != nil || again.Completed != 1 || h.engine.Calls() != 1 {
		t.Fatalf("second pass %+v after %d engine calls: %v", again, h.engine.Calls(), err)
	}
}
