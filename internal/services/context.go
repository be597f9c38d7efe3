package services

import "context"

type contextKey string

const (
	projectKey   contextKey = "project"
	phaseKey     contextKey = "phase"
	sceneKey     contextKey = "scene_id"
	requestIDKey contextKey = "request_id"
)

// WithProject annotates context with the project name.
func WithProject(ctx context.Context, project string) context.Context {
	if project == "" {
		return ctx
	}
	return context.WithValue(ctx, projectKey, project)
}

// ProjectFromContext returns the project name if present.
func ProjectFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(projectKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPhase annotates context with the pipeline phase name.
func WithPhase(ctx context.Context, phase string) context.Context {
	if phase == "" {
		return ctx
	}
	return context.WithValue(ctx, phaseKey, phase)
}

// PhaseFromContext returns the phase name if present.
func PhaseFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(phaseKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSceneID annotates context with the scene currently being processed.
func WithSceneID(ctx context.Context, sceneID string) context.Context {
	if sceneID == "" {
		return ctx
	}
	return context.WithValue(ctx, sceneKey, sceneID)
}

// SceneIDFromContext returns the scene identifier if present.
func SceneIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sceneKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
