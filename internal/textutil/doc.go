// Package textutil provides text processing utilities for scene slugs,
// display labels, log snippets, and filename sanitization.
//
// Slugs are ASCII-folded (combining marks removed after NFD decomposition),
// lowercased, and reduced to [a-z0-9] runs joined by underscores so they can
// be embedded in canonical scene identifiers and file names.
package textutil
