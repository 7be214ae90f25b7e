package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID identifies one export run.
	FieldRunID = "run_id"
	// FieldJobSeq is the 1-based sequence number of a track job within a run.
	FieldJobSeq = "job_seq"
	// FieldJobCount is the total number of jobs in a run.
	FieldJobCount = "job_count"
	// FieldTrack is the name of the track being exported.
	FieldTrack = "track"
	// FieldOutputPath is the file a render job writes.
	FieldOutputPath = "output_path"
	// FieldFormat is the export format name.
	FieldFormat = "format"
	// FieldEventType classifies warnings and errors for log searches.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey int

const (
	runIDKey contextKey = iota
	jobSeqKey
)

// WithRunID returns a context carrying the export run ID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext extracts the run ID, if any.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok && id != ""
}

// WithJobSeq returns a context carrying the job sequence number.
func WithJobSeq(ctx context.Context, seq int) context.Context {
	return context.WithValue(ctx, jobSeqKey, seq)
}

// JobSeqFromContext extracts the job sequence number, if any.
func JobSeqFromContext(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	seq, ok := ctx.Value(jobSeqKey).(int)
	return seq, ok && seq > 0
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	var fields []slog.Attr
	if id, ok := RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if seq, ok := JobSeqFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldJobSeq, seq))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
