// Package config loads, normalizes, and validates scenesmith configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SCENESMITH_LLM_API_KEY and OPENROUTER_API_KEY. The Config type centralizes
// the plan bounds, fragment contract, collaborator connection, and logging
// knobs so the CLI can hand explicit settings to each pipeline call.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
