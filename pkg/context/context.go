// Package context carries run tracing values through a lifecycle run.
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ctxKey is unexported so keys cannot collide with other packages. Each
// key is a distinct value of a non-zero-size type.
type ctxKey int

const (
	runIDKey ctxKey = iota
	correlationIDKey
	operationKey
	moduleKey
	startTimeKey
)

const (
	unknownRun         = "unknown-run"
	unknownCorrelation = "unknown-correlation"
	unknownOperation   = "unknown-operation"
)

// WithRunID adds a run ID to the context, generating one when empty
func WithRunID(parent context.Context, runID string) context.Context {
	if runID == "" {
		runID = GenerateRunID()
	}
	return context.WithValue(parent, runIDKey, runID)
}

// GetRunID retrieves the run ID from context
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok && id != "" {
		return id
	}
	return unknownRun
}

// HasRunID reports whether a run ID was set on ctx
func HasRunID(ctx context.Context) bool {
	return GetRunID(ctx) != unknownRun
}

// WithCorrelationID adds a correlation ID, linking the runs of one host
// process (e.g. every restart triggered by a manifest reload).
func WithCorrelationID(parent context.Context, correlationID string) context.Context {
	if correlationID == "" {
		correlationID = GenerateCorrelationID()
	}
	return context.WithValue(parent, correlationIDKey, correlationID)
}

// HasCorrelationID reports whether a correlation ID was set on ctx
func HasCorrelationID(ctx context.Context) bool {
	return GetCorrelationID(ctx) != unknownCorrelation
}

// GetCorrelationID retrieves the correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok && id != "" {
		return id
	}
	return unknownCorrelation
}

// WithOperation adds an operation name (start, shutdown, plan) to the context
func WithOperation(parent context.Context, operation string) context.Context {
	return context.WithValue(parent, operationKey, operation)
}

// GetOperation retrieves the operation name from context
func GetOperation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey).(string); ok && op != "" {
		return op
	}
	return unknownOperation
}

// WithModule records the module whose action is executing
func WithModule(parent context.Context, module string) context.Context {
	return context.WithValue(parent, moduleKey, module)
}

// GetModule retrieves the module name, or "" outside a module action
func GetModule(ctx context.Context) string {
	m, _ := ctx.Value(moduleKey).(string)
	return m
}

// WithStartTime adds the operation start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetStartTime retrieves the operation start time from context
func GetStartTime(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(startTimeKey).(time.Time)
	return t, ok
}

// GetDuration returns the time elapsed since the start time in ctx, or zero
func GetDuration(ctx context.Context) time.Duration {
	start, ok := GetStartTime(ctx)
	if !ok {
		return 0
	}
	return time.Since(start)
}

// GenerateRunID creates a new unique run ID
func GenerateRunID() string {
	return "run_" + uuid.New().String()
}

// GenerateCorrelationID creates a new unique correlation ID
func GenerateCorrelationID() string {
	return "cor_" + uuid.New().String()
}

// EnrichContext stamps runID (generated when empty), the operation name and
// the start time on parent. An existing correlation ID is kept; otherwise a
// new one is generated.
func EnrichContext(parent context.Context, runID, operation string) context.Context {
	ctx := WithRunID(parent, runID)
	if !HasCorrelationID(ctx) {
		ctx = WithCorrelationID(ctx, "")
	}
	ctx = WithOperation(ctx, operation)
	return WithStartTime(ctx, time.Now())
}

// TracingFields returns the tracing values set on ctx for structured
// logging. Unset values are left out.
func TracingFields(ctx context.Context) map[string]interface{} {
	fields := make(map[string]interface{}, 5)
	if HasRunID(ctx) {
		fields["run_id"] = GetRunID(ctx)
	}
	if HasCorrelationID(ctx) {
		fields["correlation_id"] = GetCorrelationID(ctx)
	}
	if op := GetOperation(ctx); op != unknownOperation {
		fields["operation"] = op
	}
	if m := GetModule(ctx); m != "" {
		fields["module"] = m
	}
	if d := GetDuration(ctx); d > 0 {
		fields["duration_ms"] = d.Milliseconds()
	}
	return fields
}
