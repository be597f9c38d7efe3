// Package state owns the persisted project record.
//
// Reading is a two-stage pipeline that cannot fail: ReadBestEffort recovers
// whatever JSON object it can from the record file (tolerating trailing
// garbage left by an interrupted writer), and Normalize coerces that object
// into a schema-valid ProjectState. Store persists records with atomic
// overwrites.
package state
