// Package voice inspects the voiceover evidence a project accumulates: the
// optional voice_config.yaml and the voice cache index written by the
// precache step.
package voice
