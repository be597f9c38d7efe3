// Package pysource parses Python scene sources with tree-sitter and answers
// the structural questions the pipeline asks of collaborator code: does it
// parse, which top-level statements does it contain, which classes does it
// declare, and which keys does a module-level dict literal define.
//
// Parsing never executes code. A tree with ERROR or MISSING nodes is reported
// through SyntaxErrors rather than as a Go error; Parse itself only fails when
// the parser cannot run at all.
package pysource
