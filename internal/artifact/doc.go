// Package artifact pulls a single candidate artifact out of raw collaborator
// text.
//
// Three shapes are supported: a structured JSON object (plan), a single code
// fragment (scene builds, repairs, narration), and a bundle of per-scene code
// fragments plus a free-text report (scene QC). Every extractor either returns
// an Artifact or one of the sentinel errors in this package; nothing is guessed.
// In particular, more than one fenced block where exactly one is expected is
// ErrAmbiguous rather than a heuristic pick.
package artifact
