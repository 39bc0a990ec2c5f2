package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"scribe/internal/logging"
	"scribe/internal/tracker"
)

// BatchSummary reports what ProcessFolder did.
type BatchSummary struct {
	Folder    string
	Total     int
	Completed int
	Failed    int
	Skipped   int
	Deferred  int
	Deleted   int
	Duration  time.Duration
	Results   []BatchResult
}

// BatchResult is the outcome for one file.
type BatchResult struct {
	Ref     string
	Status  tracker.Status
	Comment string
	Deleted bool
	Err     error
}

// ProcessFolder runs every file in folder that has not finished, using up to
// workflow.concurrency workers. Files that already finished are skipped, and
// deleted when workflow.delete_after_upload is set.
func (r *Runner) ProcessFolder(ctx context.Context, folder string) (BatchSummary, error) {
	started := time.Now()
	summary := BatchSummary{Folder: folder}

	refs, err := r.blobs.List(ctx, folder)
	if err != nil {
		return summary, blobError("batch", "list folder", err)
	}
	summary.Total = len(refs)
	r.logger.Info("batch started",
		logging.String("folder", folder),
		logging.Int("files", len(refs)),
		logging.Event("batch_start"),
	)

	workers := max(r.cfg.Workflow.Concurrency, 1)
	queue := make(chan int)
	results := make([]BatchResult, len(refs))
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for idx := range queue {
				results[idx] = r.processFile(ctx, refs[idx])
			}
		})
	}
feed:
	for idx := range refs {
		select {
		case queue <- idx:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	for _, res := range results {
		if res.Ref == "" {
			continue
		}
		summary.Results = append(summary.Results, res)
		switch {
		case res.Status == tracker.StatusTranscriptionFailed:
			summary.Failed++
		case res.Err != nil:
			summary.Deferred++
		case res.Comment == skippedComment:
			summary.Skipped++
		case res.Status == tracker.StatusTranscriptionUploadComplete:
			summary.Completed++
		}
		if res.Deleted {
			summary.Deleted++
		}
	}
	summary.Duration = time.Since(started)
	r.logger.Info("batch finished",
		logging.String("folder", folder),
		logging.Int("completed", summary.Completed),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("deferred", summary.Deferred),
		logging.Int("deleted", summary.Deleted),
		logging.Duration("batch_duration", summary.Duration),
		logging.Event("batch_complete"),
	)
	return summary, ctx.Err()
}

const skippedComment = "already complete"

func (r *Runner) processFile(ctx context.Context, ref string) BatchResult {
	result := BatchResult{Ref: ref}
	job, err := r.BeginJob(ctx, tracker.ExternalSource(ref))
	if err != nil {
		// Running on a degraded record would overwrite metadata we could not read.
		result.Err = err
		if job != nil {
			result.Status = job.Snapshot().Status
		}
		return result
	}

	if job.Snapshot().Status == tracker.StatusTranscriptionUploadComplete {
		result.Status = tracker.StatusTranscriptionUploadComplete
		result.Comment = skippedComment
		if r.cfg.Workflow.DeleteAfterUpload {
			result.Deleted = r.deleteAudio(ctx, job)
		}
		return result
	}

	record, runErr := r.Run(ctx, job)
	result.Status = record.Status
	result.Comment = record.Comment
	result.Err = runErr
	if runErr != nil && errors.Is(runErr, context.Canceled) {
		return result
	}

	if record.Status == tracker.StatusTranscriptionUploadComplete && r.cfg.Workflow.DeleteAfterUpload {
		result.Deleted = r.deleteAudio(ctx, job)
	}
	if !result.Deleted {
		r.Refresh(ctx, job)
	}
	return result
}

// deleteAudio removes the source blob and any local audio copy.
func (r *Runner) deleteAudio(ctx context.Context, job *Job) bool {
	record := job.Snapshot()
	logger := logging.WithContext(ctx, r.logger).With(logging.FileRef(record.SourceID))
	if err := r.blobs.Delete(ctx, record.SourceID); err != nil {
		logging.WarnWithContext(logger, "failed to delete transcribed audio", "audio_delete_failed",
			logging.Error(err),
			logging.Impact("audio stays in the folder and is skipped next run"),
		)
		return false
	}
	if record.LocalAudioPath != "" {
		if err := os.Remove(record.LocalAudioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Debug("failed to remove local audio", logging.Error(err))
		}
		// Drops the per-source directory once it is empty.
		if dir := filepath.Dir(record.LocalAudioPath); dir != filepath.Clean(r.cfg.Paths.AudioDir) {
			_ = os.Remove(dir)
		}
	}
	logger.Info("transcribed audio deleted", logging.Event("audio_deleted"))
	return true
}
