package validate

import (
	"fmt"
	"regexp"
	"strings"

	"scenesmith/internal/pysource"
	"scenesmith/internal/services"
)

// Rule names reported for fragment contract violations.
const (
	RuleEmpty        = "empty_fragment"
	RuleSyntax       = "syntax"
	RuleHeader       = "header_boilerplate"
	RuleImport       = "import"
	RuleClassWrapper = "class_wrapper"
	RuleConstruct    = "construct_wrapper"
	RulePlaceholder  = "placeholder"
	RuleSentinel     = "sentinel_marker"
	RuleFiller       = "scaffold_filler"
)

// FragmentRules configures the body-fragment contract.
type FragmentRules struct {
	FillerPhrases []string
	Placeholders  []*regexp.Regexp
}

var defaultPlaceholderPatterns = []string{
	`\{\{[^{}\n]*\}\}`,
	`<[A-Z][A-Z0-9_]{2,}>`,
	`\b__[A-Z][A-Z0-9_]*__\b`,
	`\bPLACEHOLDER\b`,
}

var defaultFillerPhrases = []string{
	"your animation code here",
	"replace this with",
	"insert scene content",
	"demo_text",
	"hello, manim",
}

// DefaultFragmentRules returns the built-in contract.
func DefaultFragmentRules() FragmentRules {
	rules, err := NewFragmentRules(defaultFillerPhrases, defaultPlaceholderPatterns)
	if err != nil {
		panic(err)
	}
	return rules
}

// NewFragmentRules compiles placeholder patterns. Filler phrases match
// case-insensitively.
func NewFragmentRules(filler []string, placeholders []string) (FragmentRules, error) {
	rules := FragmentRules{}
	for _, phrase := range filler {
		if phrase = strings.ToLower(strings.TrimSpace(phrase)); phrase != "" {
			rules.FillerPhrases = append(rules.FillerPhrases, phrase)
		}
	}
	for _, pattern := range placeholders {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return FragmentRules{}, fmt.Errorf("placeholder pattern %q: %w", pattern, err)
		}
		rules.Placeholders = append(rules.Placeholders, re)
	}
	return rules, nil
}

var (
	shebangPattern   = regexp.MustCompile(`^#!`)
	codingPattern    = regexp.MustCompile(`^[ \t\f]*#.*?coding[:=][ \t]*[-\w.]+`)
	constructPattern = regexp.MustCompile(`(?m)^[ \t]*(async[ \t]+)?def[ \t]+construct[ \t]*\(`)
	sentinelPattern  = regexp.MustCompile(`\bSLOT_(START|END)\b`)
)

// Violation is one broken rule of the fragment contract.
type Violation struct {
	Rule    string
	Line    int
	Message string
}

func (v Violation) String() string {
	if v.Line > 0 {
		return fmt.Sprintf("line %d: %s", v.Line, v.Message)
	}
	return v.Message
}

// FragmentViolations lists every contract violation in code. The fragment
// is dedented before parsing, so a uniformly indented body is accepted.
func FragmentViolations(code string, rules FragmentRules) []Violation {
	body := pysource.Dedent(code)
	if strings.TrimSpace(body) == "" {
		return []Violation{{Rule: RuleEmpty, Message: "fragment is empty"}}
	}
	var out []Violation
	lines := strings.Split(body, "\n")

	for i, line := range lines {
		if i >= 2 {
			break
		}
		if i == 0 && shebangPattern.MatchString(line) {
			out = append(out, Violation{Rule: RuleHeader, Line: 1, Message: "fragment starts with a shebang line"})
		}
		if codingPattern.MatchString(line) {
			out = append(out, Violation{Rule: RuleHeader, Line: i + 1, Message: "fragment carries a coding header"})
		}
	}
	for i, line := range lines {
		if loc := sentinelPattern.FindString(line); loc != "" {
			out = append(out, Violation{Rule: RuleSentinel, Line: i + 1, Message: fmt.Sprintf("leftover scaffold marker %s", loc)})
		}
		for _, re := range rules.Placeholders {
			if token := re.FindString(line); token != "" {
				out = append(out, Violation{Rule: RulePlaceholder, Line: i + 1, Message: fmt.Sprintf("unresolved placeholder %q", token)})
				break
			}
		}
		lower := strings.ToLower(line)
		for _, phrase := range rules.FillerPhrases {
			if strings.Contains(lower, phrase) {
				out = append(out, Violation{Rule: RuleFiller, Line: i + 1, Message: fmt.Sprintf("scaffold demonstration filler %q", phrase)})
				break
			}
		}
		if constructPattern.MatchString(line) {
			out = append(out, Violation{Rule: RuleConstruct, Line: i + 1, Message: "fragment defines construct(); return only the method body"})
		}
	}

	src, err := pysource.ParseString(body)
	if err != nil {
		return append(out, Violation{Rule: RuleSyntax, Message: err.Error()})
	}
	defer src.Close()

	if !src.Valid() {
		if errs := src.SyntaxErrors(); len(errs) > 0 {
			out = append(out, Violation{Rule: RuleSyntax, Line: errs[0].Line, Message: "fragment does not parse: " + errs[0].String()})
		} else {
			out = append(out, Violation{Rule: RuleSyntax, Message: "fragment does not parse"})
		}
	}
	for _, imp := range src.Imports() {
		out = append(out, Violation{Rule: RuleImport, Line: imp.Line, Message: fmt.Sprintf("import statement %q", firstLineOf(imp.Text))})
	}
	for _, class := range src.Classes() {
		out = append(out, Violation{Rule: RuleClassWrapper, Line: class.Line, Message: fmt.Sprintf("top-level class %s wraps the body", class.Name)})
	}
	if src.Valid() && !src.HasStatements() {
		out = append(out, Violation{Rule: RuleEmpty, Message: "fragment contains only comments"})
	}
	return out
}

// Fragment checks code against the body-fragment contract and returns a
// structural *services.ValidationError naming every violation.
func Fragment(phase, code string, rules FragmentRules) error {
	violations := FragmentViolations(code, rules)
	if len(violations) == 0 {
		return nil
	}
	messages := make([]string, 0, len(violations))
	for _, v := range violations {
		messages = append(messages, v.String())
	}
	err := services.Structural(phase, "fragment contract violated: "+summarizeProblems(messages), nil)
	err.Rule = violations[0].Rule
	return err
}

func firstLineOf(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return text[:idx]
	}
	return text
}
