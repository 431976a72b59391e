package logger

import "context"

// Standard field names for structured logging across ctrl-q. Use these
// instead of raw strings so every log line about a row in an import run
// names the same logical entity the error-handling design requires
// (task/event/rule/app counter, HTTP status).
const (
	FieldComponent = "component"
	FieldOperation = "operation"

	FieldTaskCounter  = "task_counter"
	FieldEventCounter = "event_counter"
	FieldRuleCounter  = "rule_counter"
	FieldAppCounter   = "app_counter"

	FieldTaskID = "task_id"
	FieldAppID  = "app_id"

	FieldHTTPMethod = "method"
	FieldHTTPPath   = "path"
	FieldHTTPStatus = "status"
	FieldAttempt    = "attempt"

	FieldDurationMS = "duration_ms"
	FieldCount      = "count"
	FieldError      = "error"

	FieldRunID = "run_id"
)

type contextKey string

const runIDKey contextKey = "logger_run_id"

// WithRunID attaches an import/export run identifier to the context so
// every log line emitted while handling that run can be correlated.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// FieldsFromContext extracts logging fields carried on the context.
func FieldsFromContext(ctx context.Context) []interface{} {
	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		return []interface{}{FieldRunID, runID}
	}
	return nil
}
