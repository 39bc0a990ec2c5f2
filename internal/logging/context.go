package logging

import (
	"context"
	"log/slog"

	"scribe/internal/services"
)

// Standard attribute keys.
const (
	FieldComponent     = "component"
	FieldJobID         = "job_id"
	FieldStage         = "stage"
	FieldFileRef       = "file_ref"
	FieldCorrelationID = "correlation_id"
	FieldStatus        = "status"
	// FieldEventType classifies a line for filtering ("status_repeat", "sync_skipped").
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
	FieldAlert     = "alert"
)

// contextKeys lists the context values copied onto loggers, in output order.
var contextKeys = []struct {
	field  string
	lookup func(context.Context) (string, bool)
}{
	{FieldJobID, services.JobIDFromContext},
	{FieldStage, services.StageFromContext},
	{FieldFileRef, services.FileRefFromContext},
	{FieldCorrelationID, services.RequestIDFromContext},
}

// ContextFields returns the job, stage, blob and request attributes stored
// in ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	for _, key := range contextKeys {
		if value, ok := key.lookup(ctx); ok {
			fields = append(fields, slog.String(key.field, value))
		}
	}
	return fields
}

// WithContext returns logger with the attributes from ContextFields added.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(toArgs(fields)...)
}
