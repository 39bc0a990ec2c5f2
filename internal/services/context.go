package services

import (
	"context"
	"strings"
)

// ctxKey identifies one piece of job scope carried on a context.
type ctxKey uint8

const (
	keyJobID ctxKey = iota
	keyStage
	keyFileRef
	keyRequestID
)

func withValue(ctx context.Context, key ctxKey, value string) context.Context {
	if strings.TrimSpace(value) == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueOf(ctx context.Context, key ctxKey) (string, bool) {
	v, _ := ctx.Value(key).(string)
	return v, v != ""
}

// WithJobID scopes ctx to a job.
func WithJobID(ctx context.Context, id string) context.Context { return withValue(ctx, keyJobID, id) }

func JobIDFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, keyJobID) }

// WithStage records the pipeline step running under ctx.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, keyStage, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, keyStage) }

// WithFileRef records the blob ref the job works on.
func WithFileRef(ctx context.Context, ref string) context.Context {
	return withValue(ctx, keyFileRef, ref)
}

func FileRefFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, keyFileRef) }

// WithRequestID attaches a correlation id, usually from an HTTP request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, keyRequestID, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, keyRequestID) }
