package metasync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"scribe/internal/blobstore"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/tracker"
)

// NewFileComment is the comment on records created for files with no usable metadata.
const NewFileComment = "New file available for transcription."

// Syncer reads and writes tracker records through blob metadata.
type Syncer struct {
	blobs  blobstore.Store
	logger *slog.Logger
}

// New constructs a Syncer over blobs.
func New(blobs blobstore.Store, logger *slog.Logger) *Syncer {
	return &Syncer{blobs: blobs, logger: logging.NewComponentLogger(logger, "metasync")}
}

// Pull loads the record stored with fileRef into st and returns it.
//
// Missing or unusable metadata yields a fresh NOT_STARTED record which is
// pushed once. A metadata read failure yields the same record in memory only,
// so a readable remote copy is never overwritten. The returned error is
// non-nil only when that read failed.
func (s *Syncer) Pull(ctx context.Context, st *tracker.Store, fileRef string) (tracker.Record, error) {
	logger := s.logger.With(logging.FileRef(fileRef))

	value, ok, err := s.blobs.GetMetadata(ctx, fileRef)
	if err != nil {
		wrapped := services.Wrap(services.ErrExternalSync, "sync", "pull", "read metadata", err)
		logging.WarnWithContext(logger, "metadata read failed; starting from a fresh record", "sync_pull_failed",
			logging.Error(wrapped),
			logging.Impact("job state is not written back until the next successful push"),
			logging.Hint("check blob store connectivity"),
		)
		record := s.install(st, fileRef)
		return record, wrapped
	}

	fields, usable := decodeFields(value, ok)
	if !usable {
		logger.Debug("no usable metadata; initializing record")
		return s.initialize(ctx, st, fileRef), nil
	}

	st.Reset()
	if err := st.Update(normalizeFields(fields, logger)); err != nil {
		logging.WarnWithContext(logger, "stored metadata is invalid; starting over", "sync_invalid_record",
			logging.Error(err),
			logging.Impact("the job restarts from NOT_STARTED"),
		)
		return s.initialize(ctx, st, fileRef), nil
	}

	record, err := st.Mutate(func(r *tracker.Record) error {
		r.SourceID = fileRef
		if r.SourceRef.IsZero() {
			r.SourceRef = tracker.ExternalSource(fileRef)
		}
		return nil
	})
	if err != nil {
		return s.initialize(ctx, st, fileRef), nil
	}
	logger.Debug("metadata pulled", logging.Status(record.Status))
	return record, nil
}

func decodeFields(value string, ok bool) (map[string]any, bool) {
	if !ok || strings.TrimSpace(value) == "" {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(value), &fields); err != nil {
		return nil, false
	}
	if status, _ := fields[tracker.FieldStatus].(string); strings.TrimSpace(status) == "" {
		return nil, false
	}
	return fields, true
}

// install replaces st with a fresh record bound to fileRef.
func (s *Syncer) install(st *tracker.Store, fileRef string) tracker.Record {
	record := st.Fresh()
	record.Comment = NewFileComment
	record.SourceID = fileRef
	record.SourceRef = tracker.ExternalSource(fileRef)
	if err := st.Replace(record); err != nil {
		// Fresh records always validate; fall back to a bare reset.
		st.Reset()
		return st.Snapshot()
	}
	return record
}

func (s *Syncer) initialize(ctx context.Context, st *tracker.Store, fileRef string) tracker.Record {
	record := s.install(st, fileRef)
	if err := s.Push(ctx, st); err != nil {
		logging.WarnWithContext(s.logger, "initial metadata push failed", "sync_push_failed",
			logging.FileRef(fileRef),
			logging.Error(err),
		)
	}
	return record
}

// Push writes the persisted form of st to its source blob. Records with no
// source id are skipped with a warning.
func (s *Syncer) Push(ctx context.Context, st *tracker.Store) error {
	record := st.Snapshot()
	if record.SourceID == "" {
		logging.WarnWithContext(s.logger, "no source id; metadata push skipped", "sync_skipped",
			logging.Status(record.Status),
			logging.Impact("state is kept in memory only"),
		)
		return nil
	}
	encoded, err := record.Encode()
	if err != nil {
		return services.Wrap(services.ErrExternalSync, "sync", "push", "encode record", err)
	}
	if err := s.blobs.SetMetadata(ctx, record.SourceID, encoded); err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return services.Wrap(services.ErrNotFound, "sync", "push", "source blob missing", err)
		}
		return services.Wrap(services.ErrExternalSync, "sync", "push", "write metadata", err)
	}
	s.logger.Debug("metadata pushed",
		logging.FileRef(record.SourceID),
		logging.Status(record.Status),
	)
	return nil
}

// Inspect decodes the record stored with fileRef without modifying anything.
// ok is false when the blob carries no usable record.
func (s *Syncer) Inspect(ctx context.Context, fileRef string) (tracker.Record, bool, error) {
	value, ok, err := s.blobs.GetMetadata(ctx, fileRef)
	if err != nil {
		return tracker.Record{}, false, services.Wrap(services.ErrExternalSync, "sync", "inspect", "read metadata", err)
	}
	fields, usable := decodeFields(value, ok)
	if !usable {
		return tracker.Record{}, false, nil
	}
	st := tracker.NewStore(tracker.WithStrictFields())
	if err := st.Update(normalizeFields(fields, s.logger)); err != nil {
		return tracker.Record{}, false, nil
	}
	record := st.Snapshot()
	record.SourceID = fileRef
	return record, true, nil
}
