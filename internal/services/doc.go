// Package services defines shared utilities consumed by the pipeline engine,
// artifact ingestion, and the collaborator adapter.
//
// Key responsibilities:
//   - Context helpers that stamp project names, phases, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper and ValidationError type
//     that classify failures as retryable, structural, semantic, or
//     configuration problems, and map them onto CLI exit codes.
//
// Use these helpers when wiring new phase logic so error handling and
// observability stay uniform across the pipeline.
package services
