package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/blobstore"
	"scribe/internal/engine"
	"scribe/internal/services"
	"scribe/internal/testsupport"
	"scribe/internal/tracker"
)

func TestRunCompletesExternalFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ref := h.putAudio("episode-42.mp3")

	job, err := h.runner.BeginJob(ctx, tracker.ExternalSource(ref))
	if err != nil {
		t.Fatalf("BeginJob: %v", err)
	}
	if got := h.runner.CurrentState(job).Status; got != tracker.StatusNotStarted {
		t.Fatalf("initial status = %s", got)
	}

	record, err := h.runner.Run(ctx, job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.Status != tracker.StatusTranscriptionUploadComplete {
		t.Fatalf("final status = %s (%s)", record.Status, record.Comment)
	}
	if record.TranscriptName != "episode-42.txt" || record.TranscriptRef == "" {
		t.Fatalf("transcript fields = %q %q", record.TranscriptName, record.TranscriptRef)
	}
	content, ok := h.blobs.Content(record.TranscriptRef)
	if !ok || !strings.Contains(string(content), "Welcome to the show") {
		t.Fatalf("uploaded transcript = %q", content)
	}
	if got := h.metadataStatus(t, ref); got != string(tracker.StatusTranscriptionUploadComplete) {
		t.Fatalf("persisted status = %s", got)
	}
	// One push for the new record, then one per step.
	if writes := h.blobs.MetadataWrites(); writes != 7 {
		t.Fatalf("metadata writes = %d, want 7", writes)
	}
	if h.engine.Calls() != 1 {
		t.Fatalf("engine calls = %d", h.engine.Calls())
	}
	counts := h.runner.Monitor().Counts()
	for _, status := range []tracker.Status{
		tracker.StatusStart,
		tracker.StatusAudioUploaded,
		tracker.StatusAudioDownloaded,
		tracker.StatusTranscribing,
		tracker.StatusTranscriptionComplete,
		tracker.StatusTranscriptionUploadComplete,
	} {
		if counts[status] != 1 {
			t.Fatalf("monitor count for %s = %d", status, counts[status])
		}
	}
}

func TestAdvanceOneStepAtATime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, err := h.runner.BeginJob(ctx, tracker.ExternalSource(h.putAudio("talk.mp3")))
	if err != nil {
		t.Fatalf("BeginJob: %v", err)
	}

	steps := []struct {
		status  tracker.Status
		comment string
	}{
		{tracker.StatusStart, "Starting the transcription workflow."},
		{tracker.StatusAudioUploaded, "Audio stored as talk.mp3."},
		{tracker.StatusAudioDownloaded, "mp3 file is ready for transcription."},
		{tracker.StatusTranscribing, "Transcribing with distil-large-v2/float16."},
		{tracker.StatusTranscriptionComplete, "Success! First 50 chars: Welcome to the show. Today we talk about transcrip"},
		{tracker.StatusTranscriptionUploadComplete, "Transcript available within the transcript folder (unless moved/deleted)."},
	}
	for _, want := range steps {
		got, err := h.runner.Advance(ctx, job)
		if err != nil {
			t.Fatalf("Advance to %s: %v", want.status, err)
		}
		record := h.runner.CurrentState(job)
		if got != want.status || record.Comment != want.comment {
			t.Fatalf("Advance = %s %q, want %s %q", got, record.Comment, want.status, want.comment)
		}
	}
}

func TestAdvanceOnTerminalJobIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, _ := h.runner.BeginJob(ctx, tracker.ExternalSource(h.putAudio("done.mp3")))
	if _, err := h.runner.Run(ctx, job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	before := h.runner.CurrentState(job)
	writes := h.blobs.MetadataWrites()

	for range 3 {
		status, err := h.runner.Advance(ctx, job)
		if err != nil || status != tracker.StatusTranscriptionUploadComplete {
			t.Fatalf("Advance on terminal = %s, %v", status, err)
		}
	}
	if h.runner.CurrentState(job) != before {
		t.Fatal("terminal advance changed the record")
	}
	if h.blobs.MetadataWrites() != writes {
		t.Fatal("terminal advance pushed metadata")
	}
}

func TestResumeAfterTranscriptionCompleteSkipsEngine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ref := h.putAudio("interview.mp3")
	job, _ := h.runner.BeginJob(ctx, tracker.ExternalSource(ref))
	for h.runner.CurrentState(job).Status != tracker.StatusTranscriptionComplete {
		if _, err := h.runner.Advance(ctx, job); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}

	// Simulated crash: a new runner picks the file up from metadata alone.
	next := &countingEngine{fn: func(context.Context, string, string, string) (string, error) {
		t.Fatal("engine must not run again after TRANSCRIPTION_COMPLETE")
		return "", nil
	}}
	runner := h.restart(next)
	resumed, err := runner.BeginJob(ctx, tracker.ExternalSource(ref))
	if err != nil {
		t.Fatalf("BeginJob: %v", err)
	}
	if got := runner.CurrentState(resumed).Status; got != tracker.StatusTranscriptionComplete {
		t.Fatalf("resumed status = %s", got)
	}
	record, err := runner.Run(ctx, resumed)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.Status != tracker.StatusTranscriptionUploadComplete || next.Calls() != 0 {
		t.Fatalf("status %s after %d engine calls", record.Status, next.Calls())
	}
}

func TestResumeWithoutLocalTranscriptTranscribesAgain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ref := h.putAudio("lecture.mp3")
	job, _ := h.runner.BeginJob(ctx, tracker.ExternalSource(ref))
	for h.runner.CurrentState(job).Status != tracker.StatusTranscriptionComplete {
		if _, err := h.runner.Advance(ctx, job); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	copies := localCopies(t, h.cfg.Paths.TranscriptDir, "lecture.txt")
	if len(copies) != 1 {
		t.Fatalf("local transcripts = %v", copies)
	}
	if err := os.Remove(copies[0]); err != nil {
		t.Fatalf("remove transcript: %v", err)
	}

	next := &countingEngine{}
	runner := h.restart(next)
	resumed, err := runner.BeginJob(ctx, tracker.ExternalSource(ref))
	if err != nil {
		t.Fatalf("BeginJob: %v", err)
	}
	status, err := runner.Advance(ctx, resumed)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if status != tracker.StatusAudioUploaded {
		t.Fatalf("expected rollback to %s, got %s", tracker.StatusAudioUploaded, status)
	}
	record, err := runner.Run(ctx, resumed)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.Status != tracker.StatusTranscriptionUploadComplete || next.Calls() != 1 {
		t.Fatalf("status %s after %d engine calls", record.Status, next.Calls())
	}
}

func TestMissingLocalAudioIsDownloadedAgain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ref := h.putAudio("podcast.mp3")
	job, _ := h.runner.BeginJob(ctx, tracker.ExternalSource(ref))
	for h.runner.CurrentState(job).Status != tracker.StatusAudioDownloaded {
		if _, err := h.runner.Advance(ctx, job); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	local := h.runner.CurrentState(job).LocalAudioPath
	if err := os.Remove(local); err != nil {
		t.Fatalf("remove local audio: %v", err)
	}

	var transcribed string
	h.engine.fn = func(_ context.Context, path, _, _ string) (string, error) {
		transcribed = path
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
		return sampleTranscript, nil
	}
	record, err := h.runner.Run(ctx, job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.Status != tracker.StatusTranscriptionUploadComplete {
		t.Fatalf("status = %s, comment %q", record.Status, record.Comment)
	}
	if transcribed != local || h.engine.Calls() != 1 {
		t.Fatalf("engine ran %d times on %q, want once on %q", h.engine.Calls(), transcribed, local)
	}
}

func TestMissingLocalAudioBeforeTranscriptUpload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, _ := h.runner.BeginJob(ctx, tracker.ExternalSource(h.putAudio("keynote.mp3")))
	for h.runner.CurrentState(job).Status != tracker.StatusTranscriptionComplete {
		if _, err := h.runner.Advance(ctx, job); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	if err := os.Remove(h.runner.CurrentState(job).LocalAudioPath); err != nil {
		t.Fatalf("remove local audio: %v", err)
	}

	record, err := h.runner.Run(ctx, job)
	if err != nil || record.Status != tracker.StatusTranscriptionUploadComplete {
		t.Fatalf("Run = %s %q, %v", record.Status, record.Comment, err)
	}
	if record.LocalAudioPath != "" {
		t.Fatalf("stale local path kept: %q", record.LocalAudioPath)
	}
	transcripts, err := h.blobs.List(ctx, h.cfg.Storage.TranscriptFolder)
	if err != nil || len(transcripts) != 1 {
		t.Fatalf("transcripts = %v, %v", transcripts, err)
	}
}

func TestSameNamedSourcesKeepSeparateTranscripts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.blobs.Put(h.cfg.Storage.AudioFolder, "episode.mp3", []byte(strings.Repeat("A", 4096)))
	second := h.blobs.Put(h.cfg.Storage.AudioFolder, "episode.mp3", []byte(strings.Repeat("B", 4096)))
	h.engine.fn = func(_ context.Context, path, _, _ string) (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Transcript of source %c with enough words to pass the length check.", data[0]), nil
	}

	firstJob, _ := h.runner.BeginJob(ctx, tracker.ExternalSource(first))
	for h.runner.CurrentState(firstJob).Status != tracker.StatusTranscriptionComplete {
		if _, err := h.runner.Advance(ctx, firstJob); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	secondJob, _ := h.runner.BeginJob(ctx, tracker.ExternalSource(second))
	if _, err := h.runner.Run(ctx, secondJob); err != nil {
		t.Fatalf("Run second: %v", err)
	}
	if copies := localCopies(t, h.cfg.Paths.TranscriptDir, "episode.txt"); len(copies) != 2 {
		t.Fatalf("local transcripts = %v", copies)
	}

	record, err := h.runner.Run(ctx, firstJob)
	if err != nil {
		t.Fatalf("Run first: %v", err)
	}
	if record.TranscriptName != "episode.txt" {
		t.Fatalf("transcript name = %q", record.TranscriptName)
	}
	content, ok := h.blobs.Content(record.TranscriptRef)
	if !ok || !strings.Contains(string(content), "source A") {
		t.Fatalf("first job uploaded %q", content)
	}
}

func TestEngineFailureMarksJobFailed(t *testing.T) {
	h := newHarness(t)
	h.engine.fn = func(context.Context, string, string, string) (string, error) {
		return "", services.Wrap(services.ErrTranscription, "transcribe", "whisperx", "run", errors.New("CUDA out of memory"))
	}
	ctx := context.Background()
	ref := h.putAudio("broken.mp3")
	job, _ := h.runner.BeginJob(ctx, tracker.ExternalSource(ref))

	record, err := h.runner.Run(ctx, job)
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
	if record.Status != tracker.StatusTranscriptionFailed {
		t.Fatalf("status = %s", record.Status)
	}
	if !strings.HasPrefix(record.Comment, "Operation: Transcribe. Error:") || !strings.Contains(record.Comment, "CUDA out of memory") {
		t.Fatalf("comment = %q", record.Comment)
	}
	if got := h.metadataStatus(t, ref); got != string(tracker.StatusTranscriptionFailed) {
		t.Fatalf("persisted status = %s", got)
	}
	if status, err := h.runner.Advance(ctx, job); err != nil || status != tracker.StatusTranscriptionFailed {
		t.Fatalf("failed job advanced: %s %v", status, err)
	}
}

func TestEngineTimeoutMarksJobFailed(t *testing.T) {
	h := newHarness(t)
	h.engine.fn = func(context.Context, string, string, string) (string, error) {
		return "", services.Wrap(services.ErrTimeout, "transcribe", "whisperx", "run exceeded timeout", errors.New("signal: killed"))
	}
	ctx := context.Background()
	ref := h.putAudio("marathon.mp3")
	job, _ := h.runner.BeginJob(ctx, tracker.ExternalSource(ref))

	record, err := h.runner.Run(ctx, job)
	if !errors.Is(err, services.ErrTranscription) || !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected engine timeout error, got %v", err)
	}
	if record.Status != tracker.StatusTranscriptionFailed {
		t.Fatalf("status = %s", record.Status)
	}
	if !strings.HasPrefix(record.Comment, "Operation: Transcribe. Error:") || !strings.Contains(record.Comment, "run exceeded timeout") {
		t.Fatalf("comment = %q", record.Comment)
	}
	if got := h.metadataStatus(t, ref); got != string(tracker.StatusTranscriptionFailed) {
		t.Fatalf("persisted status = %s", got)
	}
	if h.engine.Calls() != 1 {
		t.Fatalf("engine calls = %d, want 1", h.engine.Calls())
	}
}

func TestEngineRateLimitMarksJobFailed(t *testing.T) {
	h := newHarness(t)
	h.engine.fn = func(context.Context, string, string, string) (string, error) {
		return "", services.Wrap(services.ErrTransient, "transcribe", "openai", "service unavailable", errors.New("429 Too Many Requests"))
	}
	ctx := context.Background()
	job, _ := h.runner.BeginJob(ctx, tracker.ExternalSource(h.putAudio("busy.mp3")))

	record, err := h.runner.Run(ctx, job)
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
	if record.Status != tracker.StatusTranscriptionFailed || !strings.Contains(record.Comment, "429 Too Many Requests") {
		t.Fatalf("record = %s %q", record.Status, record.Comment)
	}
}

func TestCancelledEngineLeavesJobInPlace(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.engine.fn = func(ctx context.Context, _, _, _ string) (string, error) {
		cancel()
		return "", services.Wrap(services.ErrTranscription, "transcribe", "whisperx", "run", ctx.Err())
	}
	job, _ := h.runner.BeginJob(context.Background(), tracker.ExternalSource(h.putAudio("interrupted.mp3")))

	if _, err := h.runner.Run(ctx, job); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if got := h.runner.CurrentState(job).Status; got != tracker.StatusTranscribing {
		t.Fatalf("status after cancellation = %s", got)
	}
}

func TestShortTranscriptFails(t *testing.T) {
	h := newHarness(t)
	h.engine.fn = func(context.Context, string, string, string) (string, error) { return "uh", nil }
	ctx := context.Background()
	job, _ := h.runner.BeginJob(ctx, tracker.ExternalSource(h.putAudio("silence.mp3")))

	record, err := h.runner.Run(ctx, job)
	if !errors.Is(err, engine.ErrTranscriptTooShort) {
		t.Fatalf("expected too-short error, got %v", err)
	}
	if record.Status != tracker.StatusTranscriptionFailed {
		t.Fatalf("status = %s", record.Status)
	}
}

func TestTinyAudioFailsValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ref := h.blobs.Put(h.cfg.Storage.AudioFolder, "tiny.mp3", []byte("too small"))
	job, _ := h.runner.BeginJob(ctx, tracker.ExternalSource(ref))

	record, err := h.runner.Run(ctx, job)
	if !errors.Is(err, tracker.ErrInvalidPath) {
		t.Fatalf("expected invalid path, got %v", err)
	}
	if record.Status != tracker.StatusTranscriptionFailed || h.engine.Calls() != 0 {
		t.Fatalf("status %s, engine calls %d", record.Status, h.engine.Calls())
	}
}

func TestUploadJobStoresAudioUnderOriginalName(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tmp := testsupport.WriteAudio(t, t.TempDir(), "upload-8812.tmp", 4096)

	job, err := h.runner.BeginJob(ctx, tracker.UploadSource("Board Meeting.mp3", tmp, 4096))
	if err != nil {
		t.Fatalf("BeginJob: %v", err)
	}
	if h.blobs.MetadataWrites() != 0 {
		t.Fatal("upload jobs must not push before the audio is stored")
	}

	record, err := h.runner.Run(ctx, job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.SourceID == "" || !record.SourceRef.IsUpload() {
		t.Fatalf("unexpected source fields %+v", record)
	}
	name, err := h.blobs.Name(ctx, record.SourceID)
	if err != nil || name != "Board Meeting.mp3" {
		t.Fatalf("stored name = %q, %v", name, err)
	}
	if record.TranscriptName != "Board Meeting.txt" {
		t.Fatalf("transcript name = %q", record.TranscriptName)
	}
	if got := h.metadataStatus(t, record.SourceID); got != string(tracker.StatusTranscriptionUploadComplete) {
		t.Fatalf("persisted status = %s", got)
	}
}

func TestBeginJobValidatesInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.runner.BeginJob(ctx, tracker.SourceRef{}); !errors.Is(err, tracker.ErrInvalidValue) {
		t.Fatalf("empty source: %v", err)
	}
	small := testsupport.WriteAudio(t, t.TempDir(), "small.mp3", 10)
	if _, err := h.runner.BeginJob(ctx, tracker.UploadSource("small.mp3", small, 10)); !errors.Is(err, tracker.ErrInvalidPath) {
		t.Fatalf("small upload: %v", err)
	}
	if _, err := h.runner.BeginJobWithSettings(ctx, tracker.ExternalSource("x"), "enormous", "float16"); !errors.Is(err, tracker.ErrInvalidSetting) {
		t.Fatalf("bad quality: %v", err)
	}
	job, err := h.runner.BeginJob(ctx, tracker.ExternalSource("missing-ref"))
	if !errors.Is(err, services.ErrExternalSync) || !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatalf("missing ref: %v", err)
	}
	if job == nil || h.runner.CurrentState(job).Status != tracker.StatusNotStarted {
		t.Fatal("degraded job should still be returned")
	}
}

func TestBeginJobWithSettingsAppliesToNewRecords(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, err := h.runner.BeginJobWithSettings(ctx, tracker.ExternalSource(h.putAudio("q.mp3")), "small.en", "float32")
	if err != nil {
		t.Fatalf("BeginJobWithSettings: %v", err)
	}
	record := h.runner.CurrentState(job)
	if record.QualitySetting != "small.en" || record.ComputeSetting != "float32" {
		t.Fatalf("settings = %s/%s", record.QualitySetting, record.ComputeSetting)
	}
	var seen [2]string
	h.engine.fn = func(_ context.Context, _ string, quality, compute string) (string, error) {
		seen = [2]string{quality, compute}
		return sampleTranscript, nil
	}
	if _, err := h.runner.Run(ctx, job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seen != [2]string{"small.en", "float32"} {
		t.Fatalf("engine saw %v", seen)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	h := newHarness(t)
	job, _ := h.runner.BeginJob(context.Background(), tracker.ExternalSource(h.putAudio("c.mp3")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	record, err := h.runner.Run(ctx, job)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if record.Status != tracker.StatusNotStarted {
		t.Fatalf("cancelled job moved to %s", record.Status)
	}
}
