// Package engine computes phase transitions for a project.
//
// Apply is a pure function of the normalized state, the requested phase and
// the artifacts on disk: it never raises for a missing or invalid artifact.
// Such failures are recorded once in the state's error list and the phase is
// left where it was so the caller can retry once the collaborator produces
// better output.
package engine
