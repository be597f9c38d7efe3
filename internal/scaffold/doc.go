// Package scaffold merges validated scene body fragments into the fixed scene
// template.
//
// A scaffold carries exactly one "# SLOT_START" / "# SLOT_END" pair. Inject
// replaces the lines between them with the fragment, re-indented to the
// SLOT_START line, leaves every other line untouched, and re-parses the merged
// module. Bind then fills the scaffold's {{key}} tokens.
package scaffold
