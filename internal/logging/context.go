package logging

import (
	"context"
	"log/slog"

	"scenesmith/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldProject is the standardized structured logging key for project names.
	FieldProject = "project"
	// FieldPhase is the standardized structured logging key for pipeline phase names.
	FieldPhase = "phase"
	// FieldSceneID is the standardized structured logging key for canonical scene IDs.
	FieldSceneID = "scene_id"
	// FieldRequestID is the standardized structured logging key for per-invocation request IDs.
	FieldRequestID = "request_id"
	// FieldEventType classifies a log line for filtering (e.g. phase_advanced).
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDecisionType names the decision being logged.
	FieldDecisionType = "decision_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if project, ok := services.ProjectFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldProject, project))
	}
	if phase, ok := services.PhaseFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPhase, phase))
	}
	if sceneID, ok := services.SceneIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSceneID, sceneID))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRequestID, rid))
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
