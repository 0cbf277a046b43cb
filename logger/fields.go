package logger

import (
	"context"

	"go.uber.org/zap"
)

// Field names shared by every component.
const (
	FieldRequestID = "request_id"
	FieldActorID   = "actor_id"
	FieldRole      = "role"

	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldAddress    = "address"

	FieldJobPostID  = "job_post_id"
	FieldEmployerID = "employer_id"
	FieldAction     = "action"
	FieldFromStatus = "from_status"
	FieldToStatus   = "to_status"
	FieldReason     = "reason"

	FieldBatchSize = "batch_size"
	FieldSucceeded = "succeeded"
	FieldFailed    = "failed"

	FieldError     = "error"
	FieldErrorKind = "error_kind"

	FieldSymbol = "symbol"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	actorIDKey
)

// WithRequestID tags ctx so FromContext adds request_id
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithActorID tags ctx so FromContext adds actor_id
func WithActorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, actorIDKey, id)
}

// FromContext returns base with the request and actor ids carried by ctx.
// A nil base means the global Logger.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	var fields []interface{}
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		fields = append(fields, FieldRequestID, id)
	}
	if id, ok := ctx.Value(actorIDKey).(string); ok && id != "" {
		fields = append(fields, FieldActorID, id)
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
