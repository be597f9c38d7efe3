package scaffold

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"scenesmith/internal/pysource"
)

// Sentinel comment markers delimiting the body slot.
const (
	SlotStart = "SLOT_START"
	SlotEnd   = "SLOT_END"
)

var (
	ErrSentinel     = errors.New("scaffold sentinel pair invalid")
	ErrEmptyBody    = errors.New("body fragment has no statements")
	ErrMergedSyntax = errors.New("merged source does not parse")
	ErrUnbound      = errors.New("scaffold token left unbound")
)

//go:embed scene_scaffold.py
var defaultScaffold string

// Default returns the built-in scene scaffold.
func Default() string {
	return defaultScaffold
}

var (
	startLine = regexp.MustCompile(`^([ \t]*)#[ \t]*` + SlotStart + `[ \t]*$`)
	endLine   = regexp.MustCompile(`^[ \t]*#[ \t]*` + SlotEnd + `[ \t]*$`)
	tokenRE   = regexp.MustCompile(`\{\{[ \t]*([a-z_][a-z0-9_]*)[ \t]*\}\}`)
)

// Slot locates the sentinel pair inside a scaffold.
type Slot struct {
	Start  int // zero-based line index of SLOT_START
	End    int // zero-based line index of SLOT_END
	Indent string
}

// FindSlot returns the single sentinel pair. Missing, repeated or reversed
// markers are reported as ErrSentinel.
func FindSlot(scaffold string) (Slot, error) {
	lines := strings.Split(scaffold, "\n")
	starts, ends := []int{}, []int{}
	indent := ""
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if m := startLine.FindStringSubmatch(line); m != nil {
			starts = append(starts, i)
			indent = m[1]
			continue
		}
		if endLine.MatchString(line) {
			ends = append(ends, i)
		}
	}
	switch {
	case len(starts) == 0:
		return Slot{}, fmt.Errorf("%w: %s marker missing", ErrSentinel, SlotStart)
	case len(ends) == 0:
		return Slot{}, fmt.Errorf("%w: %s marker missing", ErrSentinel, SlotEnd)
	case len(starts) > 1 || len(ends) > 1:
		return Slot{}, fmt.Errorf("%w: found %d %s and %d %s markers", ErrSentinel, len(starts), SlotStart, len(ends), SlotEnd)
	case ends[0] < starts[0]:
		return Slot{}, fmt.Errorf("%w: %s (line %d) precedes %s (line %d)", ErrSentinel, SlotEnd, ends[0]+1, SlotStart, starts[0]+1)
	}
	return Slot{Start: starts[0], End: ends[0], Indent: indent}, nil
}

// Inject reads the scaffold at path and merges body into it.
func Inject(scaffoldPath, body string) (string, error) {
	data, err := os.ReadFile(scaffoldPath)
	if err != nil {
		return "", fmt.Errorf("read scaffold: %w", err)
	}
	return InjectSource(string(data), body)
}

// InjectSource merges body between the sentinel markers of scaffold. The
// markers themselves are kept so the result can be injected again.
func InjectSource(scaffold, body string) (string, error) {
	slot, err := FindSlot(scaffold)
	if err != nil {
		return "", err
	}
	dedented := strings.Trim(pysource.Dedent(body), "\n")
	if err := requireStatements(dedented); err != nil {
		return "", err
	}

	lines := strings.Split(scaffold, "\n")
	merged := make([]string, 0, len(lines)+strings.Count(dedented, "\n")+1)
	merged = append(merged, lines[:slot.Start+1]...)
	merged = append(merged, strings.Split(pysource.Indent(dedented, slot.Indent), "\n")...)
	merged = append(merged, lines[slot.End:]...)
	out := strings.Join(merged, "\n")

	// Unbound tokens are still present; parse with each one standing in as a
	// plain identifier.
	if err := checkParses(neutralize(out)); err != nil {
		return "", err
	}
	return out, nil
}

// Body returns the lines currently between the sentinel markers, dedented.
func Body(source string) (string, error) {
	slot, err := FindSlot(source)
	if err != nil {
		return "", err
	}
	lines := strings.Split(source, "\n")
	return pysource.Dedent(strings.Join(lines[slot.Start+1:slot.End], "\n")), nil
}

// Tokens lists the distinct {{key}} tokens in source, sorted.
func Tokens(source string) []string {
	seen := map[string]struct{}{}
	for _, m := range tokenRE.FindAllStringSubmatch(source, -1) {
		seen[m[1]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for key := range seen {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Bind replaces {{key}} tokens with values. A token without a value is
// ErrUnbound; the bound result must still parse.
func Bind(source string, values map[string]string) (string, error) {
	var missing []string
	out := tokenRE.ReplaceAllStringFunc(source, func(token string) string {
		key := tokenRE.FindStringSubmatch(token)[1]
		value, ok := values[key]
		if !ok {
			missing = append(missing, key)
			return token
		}
		return value
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w: %s", ErrUnbound, strings.Join(dedupe(missing), ", "))
	}
	if err := checkParses(out); err != nil {
		return "", err
	}
	return out, nil
}

func requireStatements(body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrEmptyBody
	}
	src, err := pysource.ParseString(body)
	if err != nil {
		return fmt.Errorf("parse body: %w", err)
	}
	defer src.Close()
	if !src.HasStatements() {
		return ErrEmptyBody
	}
	return nil
}

func checkParses(source string) error {
	src, err := pysource.ParseString(source)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMergedSyntax, err)
	}
	defer src.Close()
	if err := src.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMergedSyntax, err)
	}
	return nil
}

func neutralize(source string) string {
	return tokenRE.ReplaceAllString(source, "_${1}")
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, value := range sorted {
		if i > 0 && value == sorted[i-1] {
			continue
		}
		out = append(out, value)
	}
	return out
}
