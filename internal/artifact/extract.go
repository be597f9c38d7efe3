package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// structuredLangs are fence languages that may hold a structured object.
var structuredLangs = map[string]bool{"": true, "json": true, "jsonc": true}

// codeLangs are fence languages accepted as code fragments.
var codeLangs = map[string]bool{"": true, "python": true, "py": true, "python3": true}

// ExtractStructured returns the first JSON object in text. Closed fenced
// blocks are tried first, then balanced-brace spans in document order, then
// the whole trimmed text.
func ExtractStructured(text string) (Artifact, error) {
	fences, fenceErr := Fences(text)
	for _, fence := range fences {
		if !fence.Closed || !structuredLangs[fence.Lang] {
			continue
		}
		if obj, ok := decodeObject(fence.Body); ok {
			return Artifact{Kind: KindStructured, Raw: strings.TrimSpace(fence.Body), Object: obj}, nil
		}
	}
	for _, candidate := range ObjectCandidates(text) {
		if obj, ok := decodeObject(candidate); ok {
			return Artifact{Kind: KindStructured, Raw: candidate, Object: obj}, nil
		}
	}
	trimmed := strings.TrimSpace(text)
	if obj, ok := decodeObject(trimmed); ok {
		return Artifact{Kind: KindStructured, Raw: trimmed, Object: obj}, nil
	}
	if errors.Is(fenceErr, ErrTruncated) {
		return Artifact{}, ErrTruncated
	}
	return Artifact{}, ErrNotFound
}

func decodeObject(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if text == "" || text[0] != '{' {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// ExtractCodeFragment returns the body of the single fenced block in text.
// Anything before the first fence is ignored. More than one fence is
// ErrAmbiguous. Without a fence, unfenced text is only accepted when
// opts.AllowBareCode is set and the text looks like code.
func ExtractCodeFragment(text string, opts Options) (Artifact, error) {
	fences, err := Fences(StripPreamble(text))
	if err != nil {
		return Artifact{}, err
	}
	switch len(fences) {
	case 0:
	case 1:
		fence := fences[0]
		if !codeLangs[fence.Lang] {
			return Artifact{}, fmt.Errorf("%w: fenced block is %q, not python", ErrNotFound, fence.Lang)
		}
		code := strings.Trim(fence.Body, "\n")
		if strings.TrimSpace(code) == "" {
			return Artifact{}, fmt.Errorf("%w: fenced block is empty", ErrNotFound)
		}
		return Artifact{Kind: KindCodeFragment, Raw: fence.Body, Code: code}, nil
	default:
		return Artifact{}, fmt.Errorf("%w (%d found)", ErrAmbiguous, len(fences))
	}

	if !opts.AllowBareCode {
		return Artifact{}, ErrNotFound
	}
	code, ok := bareCode(text)
	if !ok {
		return Artifact{}, ErrNotFound
	}
	return Artifact{Kind: KindCodeFragment, Raw: text, Code: code}, nil
}

// ExtractCodeBundle returns every python fence in text as a Fragment, plus
// the text outside the fences as the report. The report must not be empty.
// Two fragments targeting the same scene are ErrAmbiguous.
func ExtractCodeBundle(text string) (Artifact, error) {
	fences, err := Fences(text)
	if err != nil {
		return Artifact{}, err
	}
	out := Artifact{Kind: KindCodeBundle, Raw: text}
	seen := make(map[string]bool)
	var reportParts []string
	if outside := outsideFences(text, fences); outside != "" {
		reportParts = append(reportParts, outside)
	}
	for _, fence := range fences {
		if !codeLangs[fence.Lang] {
			if body := strings.TrimSpace(fence.Body); body != "" {
				reportParts = append(reportParts, body)
			}
			continue
		}
		code := strings.Trim(fence.Body, "\n")
		if strings.TrimSpace(code) == "" {
			continue
		}
		target := strings.TrimSpace(fence.Attrs["scene"])
		if target != "" {
			if seen[target] {
				return Artifact{}, fmt.Errorf("%w: scene %s has more than one fragment", ErrAmbiguous, target)
			}
			seen[target] = true
		}
		out.Fragments = append(out.Fragments, Fragment{SceneID: target, Lang: fence.Lang, Code: code})
	}
	out.Report = strings.TrimSpace(strings.Join(reportParts, "\n\n"))
	if out.Report == "" {
		return Artifact{}, ErrEmptyReport
	}
	return out, nil
}

var codeLinePattern = regexp.MustCompile(
	`^\s*(#|"|'|[\[\](){}]|` +
		`(def|class|for|if|elif|else|while|with|return|try|except|finally|pass|self|async|await|lambda)\b|` +
		`[A-Za-z_][A-Za-z0-9_.]*\s*(=|\(|\[|:|\+=|-=))`)

// bareCode applies the whole-text-looks-like-code heuristic. Leading lines
// that do not look like code are dropped; at least 60% of the remaining
// non-blank lines must look like code.
func bareCode(text string) (string, bool) {
	lines := splitLines(strings.TrimSpace(text))
	start := 0
	for start < len(lines) && !codeLinePattern.MatchString(lines[start]) {
		start++
	}
	lines = lines[start:]
	var total, code int
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		total++
		if codeLinePattern.MatchString(line) || strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			code++
		}
	}
	if total == 0 || code*10 < total*6 {
		return "", false
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n \t"), true
}
