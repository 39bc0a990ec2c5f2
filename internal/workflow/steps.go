package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"scribe/internal/blobstore"
	"scribe/internal/config"
	"scribe/internal/engine"
	"scribe/internal/fileutil"
	"scribe/internal/preflight"
	"scribe/internal/services"
	"scribe/internal/textutil"
	"scribe/internal/tracker"
)

// Step comments written into the record.
const (
	commentStarting     = "Starting the transcription workflow."
	commentAudioReady   = "mp3 file is ready for transcription."
	commentUploaded     = "Transcript available within the transcript folder (unless moved/deleted)."
	commentReTranscribe = "Local transcript not found; transcribing again."
	previewChars        = 50
)

// stepResult is what a successful step hands back to the runner: the next
// status, its comment, and any other field changes.
type stepResult struct {
	next    tracker.Status
	comment string
	apply   func(*tracker.Record)
}

type pipelineStep struct {
	name string
	// remote marks steps dominated by blob store I/O, which retry transient errors.
	remote bool
	run    func(ctx context.Context, record tracker.Record) (stepResult, error)
}

func (s pipelineStep) retries(cfg *config.Config) int {
	if s.remote {
		return cfg.Workflow.SyncRetries
	}
	return 0
}

func (r *Runner) pipeline() map[tracker.Status]pipelineStep {
	return map[tracker.Status]pipelineStep{
		tracker.StatusNotStarted:            {name: "Start workflow", run: r.stepStart},
		tracker.StatusStart:                 {name: "Store audio", remote: true, run: r.stepStoreAudio},
		tracker.StatusAudioUploaded:         {name: "Fetch audio", remote: true, run: r.stepFetchAudio},
		tracker.StatusAudioDownloaded:       {name: "Announce transcription", run: r.stepAnnounce},
		tracker.StatusTranscribing:          {name: "Transcribe", run: r.stepTranscribe},
		tracker.StatusTranscriptionComplete: {name: "Upload transcript", remote: true, run: r.stepUploadTranscript},
	}
}

func (r *Runner) stepStart(_ context.Context, _ tracker.Record) (stepResult, error) {
	return stepResult{next: tracker.StatusStart, comment: commentStarting}, nil
}

func (r *Runner) stepStoreAudio(ctx context.Context, record tracker.Record) (stepResult, error) {
	ref := record.SourceID
	if ref == "" {
		if !record.SourceRef.IsUpload() {
			return stepResult{}, services.Wrap(services.ErrValidation, "store audio", "resolve source", "job has neither a source id nor an upload", nil)
		}
		staged, err := r.stageUpload(record)
		if err != nil {
			return stepResult{}, err
		}
		ref, err = r.blobs.Upload(ctx, r.cfg.Storage.AudioFolder, staged)
		if err != nil {
			return stepResult{}, services.Wrap(services.ErrExternalSync, "store audio", "upload", "", err)
		}
		record.LocalAudioPath = staged
	}

	name, err := r.blobs.Name(ctx, ref)
	if err != nil {
		return stepResult{}, blobError("store audio", "resolve name", err)
	}
	local := record.LocalAudioPath
	return stepResult{
		next:    tracker.StatusAudioUploaded,
		comment: fmt.Sprintf("Audio stored as %s.", name),
		apply: func(rec *tracker.Record) {
			rec.SourceID = ref
			rec.LocalAudioPath = local
		},
	}, nil
}

// stageUpload places uploaded audio in the audio directory under its
// original file name, so the blob is named after what the user sent.
func (r *Runner) stageUpload(record tracker.Record) (string, error) {
	handle := record.SourceRef.Upload
	source := handle.Path
	if source == "" {
		source = record.LocalAudioPath
	}
	if err := tracker.ValidateLocalPath(source); err != nil || source == "" {
		return "", services.Wrap(services.ErrValidation, "store audio", "stage upload", "uploaded audio is missing locally", err)
	}
	name := textutil.SanitizeFileName(handle.Filename)
	if name == "" || filepath.Base(source) == name {
		return source, nil
	}
	target := filepath.Join(jobDir(r.cfg.Paths.AudioDir, source), name)
	if err := fileutil.CopyFileVerified(source, target); err != nil {
		return "", services.Wrap(services.ErrValidation, "store audio", "stage upload", "copy into audio dir", err)
	}
	return target, nil
}

func (r *Runner) stepFetchAudio(ctx context.Context, record tracker.Record) (stepResult, error) {
	local, err := r.ensureLocalAudio(ctx, record)
	if err != nil {
		return stepResult{}, err
	}
	return stepResult{
		next:    tracker.StatusAudioDownloaded,
		comment: commentAudioReady,
		apply:   func(rec *tracker.Record) { rec.LocalAudioPath = local },
	}, nil
}

func (r *Runner) stepAnnounce(_ context.Context, record tracker.Record) (stepResult, error) {
	return stepResult{
		next:    tracker.StatusTranscribing,
		comment: fmt.Sprintf("Transcribing with %s/%s.", record.QualitySetting, record.ComputeSetting),
	}, nil
}

func (r *Runner) stepTranscribe(ctx context.Context, record tracker.Record) (stepResult, error) {
	local, err := r.ensureLocalAudio(ctx, record)
	if err != nil {
		return stepResult{}, err
	}

	text, err := r.engine.Transcribe(ctx, local, record.QualitySetting, record.ComputeSetting)
	if err != nil {
		return stepResult{}, engineError(ctx, err)
	}
	if err := engine.CheckTranscript(text, r.cfg.Transcription.MinTranscriptChars); err != nil {
		return stepResult{}, err
	}

	name := textutil.SwapExtension(filepath.Base(local), ".txt")
	target := filepath.Join(jobDir(r.cfg.Paths.TranscriptDir, record.SourceID), name)
	if err := fileutil.WriteFileAtomic(target, []byte(text+"\n"), 0o644); err != nil {
		return stepResult{}, services.Wrap(services.ErrValidation, "transcribe", "write transcript", target, err)
	}

	return stepResult{
		next:    tracker.StatusTranscriptionComplete,
		comment: fmt.Sprintf("Success! First %d chars: %s", previewChars, preview(text, previewChars)),
		apply: func(rec *tracker.Record) {
			rec.LocalAudioPath = local
			rec.TranscriptName = name
		},
	}, nil
}

func (r *Runner) stepUploadTranscript(ctx context.Context, record tracker.Record) (stepResult, error) {
	local := r.localTranscriptPath(record)
	if local == "" || !fileutil.Exists(local) {
		return stepResult{
			next:    tracker.StatusAudioUploaded,
			comment: commentReTranscribe,
			apply: func(rec *tracker.Record) {
				rec.TranscriptName = ""
				rec.TranscriptRef = ""
			},
		}, nil
	}

	ref, err := r.blobs.Upload(ctx, r.cfg.Storage.TranscriptFolder, local)
	if err != nil {
		return stepResult{}, services.Wrap(services.ErrExternalSync, "upload transcript", "upload", "", err)
	}
	return stepResult{
		next:    tracker.StatusTranscriptionUploadComplete,
		comment: commentUploaded,
		apply:   func(rec *tracker.Record) { rec.TranscriptRef = ref },
	}, nil
}

// ensureLocalAudio returns a usable local copy of the job's audio,
// downloading it when the recorded path is missing or unusable.
func (r *Runner) ensureLocalAudio(ctx context.Context, record tracker.Record) (string, error) {
	if record.LocalAudioPath != "" && fileutil.Exists(record.LocalAudioPath) {
		if err := tracker.ValidateLocalPath(record.LocalAudioPath); err == nil {
			return record.LocalAudioPath, nil
		}
	}
	if record.SourceID == "" {
		return "", services.Wrap(services.ErrValidation, "fetch audio", "resolve source", "no source id to download from", nil)
	}

	minFree := preflight.MiB(r.cfg.Workflow.MinFreeDiskMiB)
	if check := preflight.CheckDiskSpace("audio dir", r.cfg.Paths.AudioDir, minFree); !check.Passed {
		return "", services.Wrap(services.ErrValidation, "fetch audio", "disk space", check.Detail, nil)
	}

	local, err := r.blobs.Download(ctx, record.SourceID, jobDir(r.cfg.Paths.AudioDir, record.SourceID))
	if err != nil {
		return "", blobError("fetch audio", "download", err)
	}
	if err := tracker.ValidateLocalPath(local); err != nil {
		return "", services.Wrap(services.ErrValidation, "fetch audio", "validate", local, err)
	}
	return local, nil
}

func (r *Runner) localTranscriptPath(record tracker.Record) string {
	name := strings.TrimSpace(record.TranscriptName)
	if name == "" {
		return ""
	}
	return filepath.Join(jobDir(r.cfg.Paths.TranscriptDir, record.SourceID), filepath.Base(name))
}

// jobDir is the local working directory for one source under base. Sources
// whose files share a name get separate directories, so a resumed job never
// picks up another job's audio or transcript.
func jobDir(base, key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(base, hex.EncodeToString(sum[:6]))
}

// engineError marks every engine failure as terminal for the job, including
// engine timeouts and rate limits. Only cancellation of the caller's context
// leaves the job in place.
func engineError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	if errors.Is(err, services.ErrTranscription) {
		return err
	}
	return services.Wrap(services.ErrTranscription, "transcribe", "engine", "", err)
}

// blobError classifies a blob store failure: unknown refs are permanent,
// everything else may be retried.
func blobError(stage, operation string, err error) error {
	if errors.Is(err, blobstore.ErrNotFound) || errors.Is(err, blobstore.ErrInvalidRef) {
		return services.Wrap(services.ErrNotFound, stage, operation, "", err)
	}
	return services.Wrap(services.ErrExternalSync, stage, operation, "", err)
}

func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}
