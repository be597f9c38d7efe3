package validate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"scenesmith/internal/fileutil"
	"scenesmith/internal/services"
	"scenesmith/internal/textutil"
)

const diagnosticSnippetLimit = 2000

// Diagnostic is the on-disk record of a rejected collaborator response.
type Diagnostic struct {
	Timestamp          string `json:"timestamp"`
	Phase              string `json:"phase"`
	Rule               string `json:"rule,omitempty"`
	RawResponseSummary string `json:"raw_response_summary"`
	ExtractedContent   any    `json:"extracted_content"`
	ValidationError    string `json:"validation_error"`
}

// NewDiagnostic assembles a diagnostic for a validation failure.
func NewDiagnostic(now time.Time, phase, raw string, extracted any, err error) Diagnostic {
	d := Diagnostic{
		Timestamp:          now.UTC().Format(time.RFC3339),
		Phase:              phase,
		RawResponseSummary: textutil.Summarize(raw, diagnosticSnippetLimit),
		ExtractedContent:   extracted,
	}
	if err != nil {
		d.ValidationError = err.Error()
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			d.Rule = verr.Rule
		}
	}
	return d
}

// WriteDiagnostic stores d under dir as <timestamp>_<phase>.json. Callers
// treat a returned error as a warning; diagnostics never fail an ingest.
func WriteDiagnostic(dir string, d Diagnostic) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("diagnostic directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create diagnostic directory: %w", err)
	}
	stamp := time.Now().UTC().Format("20060102T150405.000000000Z")
	if parsed, err := time.Parse(time.RFC3339, d.Timestamp); err == nil {
		stamp = parsed.UTC().Format("20060102T150405Z")
	}
	name := fmt.Sprintf("%s_%s.json", stamp, textutil.SanitizeToken(d.Phase))
	path := filepath.Join(dir, name)
	if fileutil.Exists(path) {
		name = fmt.Sprintf("%s_%s_%d.json", stamp, textutil.SanitizeToken(d.Phase), time.Now().UnixNano())
		path = filepath.Join(dir, name)
	}
	if err := fileutil.WriteJSONAtomic(path, d); err != nil {
		return "", err
	}
	return path, nil
}
