package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

const (
	// LogFieldRunID is the field name for the pipeline run ID.
	LogFieldRunID = "run_id"
	// LogFieldStage is the field name for the pipeline stage.
	LogFieldStage = "stage"
	// LogFieldDuration is the field name for duration in milliseconds.
	LogFieldDuration = "duration_ms"
	// LogFieldInputLen is the field name for input length.
	LogFieldInputLen = "input_length"
	// LogFieldErrorKind is the field name for the gateway error kind.
	LogFieldErrorKind = "error_kind"
	// LogFieldOutcome is the field name for the run outcome.
	LogFieldOutcome = "outcome"
)

// RunContext carries the identity and logger of a single pipeline run.
type RunContext struct {
	RunID     string
	StartTime time.Time
	Logger    *slog.Logger
}

// NewRunContext creates a run context with a generated run ID.
func NewRunContext(logger *slog.Logger) *RunContext {
	return NewRunContextWithID(logger, generateRunID())
}

// NewRunContextWithID creates a run context with a specific run ID.
func NewRunContextWithID(logger *slog.Logger, runID string) *RunContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunContext{
		RunID:     runID,
		StartTime: time.Now(),
		Logger:    logger.With(slog.String(LogFieldRunID, runID)),
	}
}

// Stage returns the run logger tagged with a stage name.
func (r *RunContext) Stage(stage string) *slog.Logger {
	return r.Logger.With(slog.String(LogFieldStage, stage))
}

// Duration returns the elapsed time since the run started.
func (r *RunContext) Duration() time.Duration {
	return time.Since(r.StartTime)
}

// DurationMs returns the elapsed time in milliseconds.
func (r *RunContext) DurationMs() int64 {
	return r.Duration().Milliseconds()
}

func generateRunID() string {
	return shortuuid.New()
}

type ctxKey struct{}

// WithRunContext adds the run context to the context.
func WithRunContext(ctx context.Context, run *RunContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, run)
}

// FromContext extracts the run context from the context.
func FromContext(ctx context.Context) (*RunContext, bool) {
	run, ok := ctx.Value(ctxKey{}).(*RunContext)
	return run, ok
}

// LoggerFrom returns the run logger carried by ctx, or fallback when there is none.
func LoggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if run, ok := FromContext(ctx); ok {
		return run.Logger
	}
	if fallback == nil {
		return slog.Default()
	}
	return fallback
}
