package logging

import (
	"context"
	"log/slog"
	"slices"
)

// teeHandler sends every record to a primary handler and copies it to the
// mirrors, each filtered by its own level. Only the primary handler's error
// is returned.
type teeHandler struct {
	primary slog.Handler
	mirrors []slog.Handler
}

func newTeeHandler(primary slog.Handler, mirrors ...slog.Handler) slog.Handler {
	kept := slices.DeleteFunc(slices.Clone(mirrors), func(h slog.Handler) bool { return h == nil })
	if primary == nil {
		if len(kept) == 0 {
			return slog.DiscardHandler
		}
		primary, kept = kept[0], kept[1:]
	}
	if len(kept) == 0 {
		return primary
	}
	return &teeHandler{primary: primary, mirrors: kept}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.primary.Enabled(ctx, level) {
		return true
	}
	return slices.ContainsFunc(h.mirrors, func(m slog.Handler) bool { return m.Enabled(ctx, level) })
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, m := range h.mirrors {
		if m.Enabled(ctx, record.Level) {
			_ = m.Handle(ctx, record.Clone())
		}
	}
	if !h.primary.Enabled(ctx, record.Level) {
		return nil
	}
	return h.primary.Handle(ctx, record)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.each(func(inner slog.Handler) slog.Handler { return inner.WithAttrs(attrs) })
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.each(func(inner slog.Handler) slog.Handler { return inner.WithGroup(name) })
}

func (h *teeHandler) each(fn func(slog.Handler) slog.Handler) *teeHandler {
	next := &teeHandler{primary: fn(h.primary), mirrors: make([]slog.Handler, len(h.mirrors))}
	for i, m := range h.mirrors {
		next.mirrors[i] = fn(m)
	}
	return next
}

// TeeLogger keeps base as the primary output and mirrors its records into
// the given handlers. The CLI mirrors console output into the JSON log file.
func TeeLogger(base *slog.Logger, mirrors ...slog.Handler) *slog.Logger {
	var primary slog.Handler
	if base != nil {
		primary = base.Handler()
	}
	return slog.New(newTeeHandler(primary, mirrors...))
}
