package workflow

import (
	"context"
	"strings"

	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/services/guard"
	"scribe/internal/tracker"
)

// handleStepFailure records a failed step. Permanent failures move the job to
// TRANSCRIPTION_FAILED and push that state; transient blob store failures
// and cancellation leave the job where it was. The step error is always returned.
func (r *Runner) handleStepFailure(ctx context.Context, job *Job, step pipelineStep, stepErr error) (tracker.Status, error) {
	logger := logging.WithContext(ctx, r.logger)
	status, fail := services.FailureStatus(stepErr)
	if !fail {
		current := job.store.Status()
		logger.Warn("step interrupted; job stays in place for retry",
			logging.Event("step_deferred"),
			logging.Status(current),
			logging.Hint("advance the job again once the cause clears"),
			logging.Error(stepErr),
		)
		return current, stepErr
	}

	message := guard.Message(step.name, stepErr)
	committed, err := job.store.Mutate(func(rec *tracker.Record) error {
		rec.SetFailed(message)
		return nil
	})
	if err != nil {
		// Validation of the failed record can only trip on a stale local
		// path; drop it and record the failure anyway.
		committed, err = job.store.Mutate(func(rec *tracker.Record) error {
			rec.LocalAudioPath = ""
			rec.SetFailed(message)
			return nil
		})
		if err != nil {
			logger.Error("failed to record step failure", logging.Error(err))
			return job.store.Status(), stepErr
		}
	}

	logger.Error("step failed",
		logging.Event("step_failure"),
		logging.Status(status),
		logging.String("error_message", strings.TrimSpace(message)),
		logging.Alert("step_failure"),
		logging.Error(stepErr),
	)
	r.push(ctx, job)
	r.monitor.Observe(committed.Status, committed.Comment)
	return committed.Status, stepErr
}
