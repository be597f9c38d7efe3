// Package llm provides an OpenRouter chat client for the text-generation
// collaborator.
//
// The pipeline treats every response as untrusted text: this package only
// moves prompts out and text back, and the ingest package decides whether the
// text becomes an artifact.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send system/user prompts, receive free text (code fragments,
// narration scripts, QC reports).
// Client.CompleteJSON: JSON-mode request for structured phases such as plan;
// the decoded object is returned alongside the raw text.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty completions, and
// network timeouts with exponential backoff (base 1s, max 10s, four attempts
// by default). Context cancellation aborts retries immediately.
package llm
