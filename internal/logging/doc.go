// Package logging assembles structured slog loggers and formatting helpers used
// across scenesmith.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with the project, phase, scene, and request IDs carried in the
// context. The package also provides a no-op logger for tests and wiring code
// that cannot fail.
package logging
