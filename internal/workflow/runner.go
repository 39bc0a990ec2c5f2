package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"scribe/internal/blobstore"
	"scribe/internal/config"
	"scribe/internal/engine"
	"scribe/internal/logging"
	"scribe/internal/metasync"
	"scribe/internal/monitor"
	"scribe/internal/services"
	"scribe/internal/services/guard"
	"scribe/internal/tracker"
)

// Runner advances jobs through the pipeline.
type Runner struct {
	cfg     *config.Config
	blobs   blobstore.Store
	engine  engine.Engine
	syncer  *metasync.Syncer
	monitor *monitor.Monitor
	logger  *slog.Logger
	steps   map[tracker.Status]pipelineStep
}

// RunnerOption configures optional Runner behavior.
type RunnerOption func(*Runner)

// WithMonitor shares a status monitor across runners.
func WithMonitor(m *monitor.Monitor) RunnerOption {
	return func(r *Runner) {
		if m != nil {
			r.monitor = m
		}
	}
}

// NewRunner constructs a Runner.
func NewRunner(cfg *config.Config, blobs blobstore.Store, eng engine.Engine, logger *slog.Logger, opts ...RunnerOption) *Runner {
	logger = logging.NewComponentLogger(logger, "workflow")
	r := &Runner{
		cfg:    cfg,
		blobs:  blobs,
		engine: eng,
		syncer: metasync.New(blobs, logger),
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.monitor == nil {
		r.monitor = monitor.New(logger, cfg.Workflow.RepeatThreshold)
	}
	r.steps = r.pipeline()
	return r
}

// Monitor returns the status monitor the runner reports to.
func (r *Runner) Monitor() *monitor.Monitor {
	return r.monitor
}

// Syncer returns the metadata syncer the runner pushes through.
func (r *Runner) Syncer() *metasync.Syncer {
	return r.syncer
}

func (r *Runner) newStore(quality, compute string) *tracker.Store {
	opts := []tracker.Option{
		tracker.WithDefaults(quality, compute),
		tracker.WithLogger(r.logger),
	}
	if r.cfg.Workflow.StrictFields {
		opts = append(opts, tracker.WithStrictFields())
	}
	return tracker.NewStore(opts...)
}

// BeginJob creates a job for source.
//
// An external source is resumed from its blob metadata. When that metadata
// cannot be read the job is still returned, holding a fresh in-memory record,
// together with the read error; callers decide whether to continue.
// An upload source starts a fresh NOT_STARTED record whose pushes are no-ops
// until the audio has been uploaded.
func (r *Runner) BeginJob(ctx context.Context, source tracker.SourceRef) (*Job, error) {
	return r.BeginJobWithSettings(ctx, source, r.cfg.Transcription.Quality, r.cfg.Transcription.Compute)
}

// BeginJobWithSettings is BeginJob with explicit defaults for new records.
func (r *Runner) BeginJobWithSettings(ctx context.Context, source tracker.SourceRef, quality, compute string) (*Job, error) {
	if err := tracker.ValidateQuality(quality); err != nil {
		return nil, err
	}
	if err := tracker.ValidateCompute(compute); err != nil {
		return nil, err
	}

	job := &Job{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		store:     r.newStore(quality, compute),
	}
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, r.logger)

	switch {
	case source.ExternalID != "":
		ctx = services.WithFileRef(ctx, source.ExternalID)
		record, err := r.syncer.Pull(ctx, job.store, source.ExternalID)
		logger.Info("job resumed from metadata",
			logging.FileRef(source.ExternalID),
			logging.Status(record.Status),
		)
		if err != nil {
			return job, err
		}
	case source.IsUpload():
		if _, err := job.store.Mutate(func(rec *tracker.Record) error {
			rec.SourceRef = source
			rec.LocalAudioPath = source.Upload.Path
			return nil
		}); err != nil {
			return nil, fmt.Errorf("begin upload job: %w", err)
		}
		logger.Info("job created for upload", logging.String("filename", source.Upload.Filename))
	default:
		return nil, fmt.Errorf("%w: job source is empty", tracker.ErrInvalidValue)
	}
	return job, nil
}

// CurrentState returns the job's record.
func (r *Runner) CurrentState(job *Job) tracker.Record {
	return job.Snapshot()
}

// Advance performs one pipeline step and returns the resulting status.
// Terminal jobs are returned unchanged.
func (r *Runner) Advance(ctx context.Context, job *Job) (tracker.Status, error) {
	if job == nil {
		return "", errors.New("workflow: nil job")
	}
	job.mu.Lock()
	defer job.mu.Unlock()

	current := job.store.Snapshot()
	if current.Status.IsTerminal() {
		return current.Status, nil
	}
	step, ok := r.steps[current.Status]
	if !ok {
		return current.Status, fmt.Errorf("%w: no step for %s", tracker.ErrInvalidState, current.Status)
	}

	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithStage(ctx, step.name)
	if current.SourceID != "" {
		ctx = services.WithFileRef(ctx, current.SourceID)
	}
	logger := logging.WithContext(ctx, r.logger)
	logger.Debug("step started",
		logging.Event("step_start"),
		logging.Status(current.Status),
	)
	started := time.Now()

	var result stepResult
	err := guard.Run(ctx, logger, guard.Operation{
		Name:    step.name,
		Retries: step.retries(r.cfg),
	}, func(ctx context.Context) error {
		var stepErr error
		result, stepErr = step.run(ctx, current)
		return stepErr
	})
	if err != nil {
		return r.handleStepFailure(ctx, job, step, err)
	}

	committed, err := job.store.Mutate(func(rec *tracker.Record) error {
		if result.apply != nil {
			result.apply(rec)
		}
		forgetMissingAudio(logger, rec)
		return rec.Advance(result.next, result.comment)
	})
	if err != nil {
		return r.handleStepFailure(ctx, job, step, err)
	}

	r.push(ctx, job)
	r.monitor.Observe(committed.Status, committed.Comment)
	logger.Info("step completed",
		logging.Event("step_complete"),
		logging.Status(committed.Status),
		logging.String("comment", committed.Comment),
		logging.Duration("step_duration", time.Since(started)),
	)
	return committed.Status, nil
}

// forgetMissingAudio clears a local audio path that no longer points at a
// usable file. Later steps download the audio again when they need it.
func forgetMissingAudio(logger *slog.Logger, rec *tracker.Record) {
	if rec.LocalAudioPath == "" {
		return
	}
	if err := tracker.ValidateLocalPath(rec.LocalAudioPath); err != nil {
		logger.Debug("local audio copy gone; will download again",
			logging.Event("local_audio_missing"),
			logging.Error(err),
		)
		rec.LocalAudioPath = ""
	}
}

// Run advances job until it reaches a terminal status or a step fails.
func (r *Runner) Run(ctx context.Context, job *Job) (tracker.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return job.Snapshot(), err
		}
		status, err := r.Advance(ctx, job)
		if err != nil {
			return job.Snapshot(), err
		}
		if status.IsTerminal() {
			return job.Snapshot(), nil
		}
	}
}

// push writes the job's record to blob metadata. Failures are logged and
// otherwise ignored; the in-memory state stays authoritative.
func (r *Runner) push(ctx context.Context, job *Job) {
	_ = guard.Run(ctx, logging.WithContext(ctx, r.logger), guard.Operation{
		Name:     "Push status",
		Continue: true,
		Retries:  r.cfg.Workflow.SyncRetries,
	}, func(ctx context.Context) error {
		return r.syncer.Push(ctx, job.store)
	})
}

// Refresh re-pushes the job's record, logging and ignoring failures.
func (r *Runner) Refresh(ctx context.Context, job *Job) {
	r.push(services.WithJobID(ctx, job.ID), job)
}
