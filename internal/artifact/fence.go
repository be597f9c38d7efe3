package artifact

import (
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// Fence is a fenced block found in collaborator text. Lines are 1-based.
type Fence struct {
	Info      string
	Lang      string
	Attrs     map[string]string
	Body      string
	StartLine int
	EndLine   int
	Closed    bool
}

// Fences returns every fenced block in text in document order. When a block
// is never closed it is returned with Closed=false together with
// ErrTruncated.
func Fences(text string) ([]Fence, error) {
	src := []byte(normalizeNewlines(text))
	doc := goldmark.DefaultParser().Parse(gmtext.NewReader(src))
	idx := newLineIndex(src)

	var (
		out    []Fence
		cursor int
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok || !entering {
			return ast.WalkContinue, nil
		}
		fence := idx.fence(block, src, cursor)
		cursor = fence.EndLine
		out = append(out, fence)
		return ast.WalkSkipChildren, nil
	})

	for _, f := range out {
		if !f.Closed {
			return out, ErrTruncated
		}
	}
	return out, nil
}

// StripPreamble drops everything before the first fence opening line. Text
// without a fence is returned unchanged.
func StripPreamble(text string) string {
	fences, _ := Fences(text)
	if len(fences) == 0 {
		return text
	}
	lines := splitLines(text)
	return strings.Join(lines[fences[0].StartLine-1:], "\n")
}

// outsideFences returns the text that is not part of any fence, including
// fence marker lines.
func outsideFences(text string, fences []Fence) string {
	lines := splitLines(text)
	inside := make([]bool, len(lines))
	for _, f := range fences {
		for ln := f.StartLine; ln <= f.EndLine && ln-1 < len(lines); ln++ {
			inside[ln-1] = true
		}
	}
	var kept []string
	for i, line := range lines {
		if !inside[i] {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// lineIndex maps byte offsets of a source buffer to 0-based line numbers.
type lineIndex struct {
	starts []int
	size   int
}

func newLineIndex(src []byte) lineIndex {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return lineIndex{starts: starts, size: len(src)}
}

func (x lineIndex) lineOf(pos int) int {
	return sort.Search(len(x.starts), func(i int) bool { return x.starts[i] > pos }) - 1
}

func (x lineIndex) line(src []byte, n int) string {
	if n < 0 || n >= len(x.starts) {
		return ""
	}
	end := x.size
	if n+1 < len(x.starts) {
		end = x.starts[n+1]
	}
	return strings.TrimRight(string(src[x.starts[n]:end]), "\n")
}

// fence converts a parsed block into a Fence. The parser does not record the
// marker lines, so the opening line is located from the info string or the
// first body line, and the block counts as closed only when the line after
// its body is a matching closing marker. from is the first line that may hold
// the opening marker.
func (x lineIndex) fence(block *ast.FencedCodeBlock, src []byte, from int) Fence {
	lines := block.Lines()
	open := -1
	switch {
	case block.Info != nil:
		open = x.lineOf(block.Info.Segment.Start)
	case lines.Len() > 0:
		open = x.lineOf(lines.At(0).Start) - 1
	default:
		for n := from; n < len(x.starts); n++ {
			if _, _, ok := fenceMarker(x.line(src, n)); ok {
				open = n
				break
			}
		}
	}
	if open < 0 {
		open = from
	}

	var info string
	if block.Info != nil {
		info = strings.TrimSpace(string(block.Info.Segment.Value(src)))
	}
	lang, attrs := parseInfo(info)

	var body strings.Builder
	last := open
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		body.Write(seg.Value(src))
		last = x.lineOf(seg.Start)
	}

	f := Fence{
		Info:      info,
		Lang:      lang,
		Attrs:     attrs,
		Body:      strings.TrimSuffix(body.String(), "\n"),
		StartLine: open + 1,
		EndLine:   last + 1,
	}
	char, width, _ := fenceMarker(x.line(src, open))
	if width > 0 && closesFence(x.line(src, last+1), char, width) {
		f.Closed = true
		f.EndLine = last + 2
	}
	return f
}

// fenceMarker finds the run of backticks or tildes that opens a fence line,
// skipping any container prefix such as a list bullet or quote marker.
func fenceMarker(line string) (byte, int, bool) {
	i := strings.IndexAny(line, "`~")
	if i < 0 {
		return 0, 0, false
	}
	char := line[i]
	n := 0
	for i+n < len(line) && line[i+n] == char {
		n++
	}
	return char, n, n >= 3
}

func closesFence(line string, char byte, width int) bool {
	trimmed := strings.TrimLeft(line, " \t>")
	n := 0
	for n < len(trimmed) && trimmed[n] == char {
		n++
	}
	return n >= width && strings.TrimSpace(trimmed[n:]) == ""
}

// parseInfo splits a fence info string into its language and key=value
// attributes, e.g. "python scene=scene_01_intro".
func parseInfo(info string) (string, map[string]string) {
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return "", nil
	}
	lang := ""
	start := 0
	if !strings.Contains(fields[0], "=") {
		lang = strings.ToLower(strings.TrimPrefix(fields[0], "{"))
		lang = strings.TrimSuffix(lang, "}")
		start = 1
	}
	var attrs map[string]string
	for _, field := range fields[start:] {
		key, value, ok := strings.Cut(field, "=")
		if !ok || key == "" {
			continue
		}
		if attrs == nil {
			attrs = make(map[string]string)
		}
		attrs[strings.ToLower(key)] = strings.Trim(value, `"'`)
	}
	return lang, attrs
}

func normalizeNewlines(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}

func splitLines(text string) []string {
	return strings.Split(normalizeNewlines(text), "\n")
}
