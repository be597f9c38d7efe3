package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify folds value to lowercase ASCII and joins alphanumeric runs with
// underscores. The result is truncated to maxLen bytes when maxLen > 0 and
// may be empty when value has no usable characters.
func Slugify(value string, maxLen int) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, value)
	if err != nil {
		folded = value
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	out := b.String()
	if maxLen > 0 && len(out) > maxLen {
		out = strings.TrimRight(out[:maxLen], "_")
	}
	return out
}

// Humanize turns an identifier such as "build_scenes" into "Build Scenes".
func Humanize(value string) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, "_", " "))
	if value == "" {
		return ""
	}
	return cases.Title(language.Und).String(value)
}

// Summarize collapses whitespace and truncates content to limit runes for
// log lines and diagnostics.
func Summarize(content string, limit int) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	chars := []rune(clean)
	if limit > 0 && len(chars) > limit {
		clean = string(chars[:limit]) + "..."
	}
	return clean
}
