package artifact

import "errors"

// Kind tags the shape of an extracted artifact.
type Kind string

const (
	KindStructured   Kind = "structured_object"
	KindCodeFragment Kind = "single_code_fragment"
	KindCodeBundle   Kind = "multi_code_fragment_with_report"
)

var (
	// ErrNotFound reports that no candidate of the requested kind exists.
	ErrNotFound = errors.New("artifact not found")
	// ErrAmbiguous reports more than one candidate where exactly one is required.
	ErrAmbiguous = errors.New("ambiguous artifact: multiple fenced blocks")
	// ErrTruncated reports a fenced block that was opened but never closed.
	ErrTruncated = errors.New("truncated artifact: unterminated fenced block")
	// ErrEmptyReport reports a code bundle without any report text.
	ErrEmptyReport = errors.New("code bundle has no report")
)

// Fragment is one code block of a bundle.
type Fragment struct {
	// SceneID is the scene=<id> target from the fence info string, if any.
	SceneID string
	Lang    string
	Code    string
}

// Artifact is the tagged union returned by the extractors. Only the fields
// belonging to Kind are populated.
type Artifact struct {
	Kind Kind
	// Raw is the captured text the artifact was decoded from.
	Raw       string
	Object    map[string]any
	Code      string
	Fragments []Fragment
	Report    string
}

// Options tunes code fragment extraction.
type Options struct {
	// AllowBareCode accepts unfenced text that looks like code. Only the
	// narration script, which has no structured channel, enables it.
	AllowBareCode bool
}
