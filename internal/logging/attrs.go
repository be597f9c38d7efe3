package logging

import (
	"context"
	"log/slog"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Error records err under "error". A nil error is written as "<nil>".
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attributes into the variadic form of slog.Logger methods.
func Args(attrs ...Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags logger with a component name. A nil logger
// becomes a no-op one.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// warnDefaults fill in the fields every warning carries when the caller
// leaves them out.
var warnDefaults = []struct{ key, value string }{
	{FieldErrorHint, "run scenesmith logs --request <id> for details"},
	{FieldImpact, "the command continued without this step"},
}

// WarnWithContext logs a warning that always names its event type, the
// operator's next step and the consequence.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	present := make(map[string]bool, len(attrs))
	for _, attr := range attrs {
		present[attr.Key] = true
	}
	if !present[FieldEventType] {
		attrs = append(attrs, String(FieldEventType, eventType))
	}
	for _, d := range warnDefaults {
		if !present[d.key] {
			attrs = append(attrs, String(d.key, d.value))
		}
	}
	logger.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
}

// DecisionAttrs returns logger arguments describing a decision: its type,
// the outcome and why.
func DecisionAttrs(decisionType, result, reason string) []any {
	return Args(
		String(FieldDecisionType, decisionType),
		String("decision_result", result),
		String("decision_reason", reason),
	)
}
