package pysource

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Node is a flattened view of a top-level statement.
type Node struct {
	Type string
	Text string
	Line int
}

// Class describes a class definition found at module level.
type Class struct {
	Name  string
	Bases []string
	Line  int
}

// SyntaxError locates a parse failure. Line and Column are 1-based.
type SyntaxError struct {
	Line    int
	Column  int
	Missing bool
	Snippet string
}

func (e SyntaxError) String() string {
	if e.Missing {
		return fmt.Sprintf("line %d:%d: missing %s", e.Line, e.Column, e.Snippet)
	}
	return fmt.Sprintf("line %d:%d: unexpected %q", e.Line, e.Column, e.Snippet)
}

// Source is a parsed Python module.
type Source struct {
	content []byte
	tree    *sitter.Tree
}

// Parse parses content as a Python module.
func Parse(content []byte) (*Source, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse python source: %w", err)
	}
	return &Source{content: content, tree: tree}, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(content string) (*Source, error) {
	return Parse([]byte(content))
}

// Close releases the underlying tree.
func (s *Source) Close() {
	if s != nil && s.tree != nil {
		s.tree.Close()
		s.tree = nil
	}
}

func (s *Source) root() *sitter.Node {
	return s.tree.RootNode()
}

func (s *Source) text(n *sitter.Node) string {
	return string(s.content[n.StartByte():n.EndByte()])
}

// Valid reports whether the module parsed without ERROR or MISSING nodes.
func (s *Source) Valid() bool {
	return !s.root().HasError()
}

// SyntaxErrors lists every ERROR and MISSING node in document order.
func (s *Source) SyntaxErrors() []SyntaxError {
	var out []SyntaxError
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.IsMissing() {
			pt := n.StartPoint()
			out = append(out, SyntaxError{Line: int(pt.Row) + 1, Column: int(pt.Column) + 1, Missing: true, Snippet: n.Type()})
			return
		}
		if n.Type() == "ERROR" {
			pt := n.StartPoint()
			out = append(out, SyntaxError{Line: int(pt.Row) + 1, Column: int(pt.Column) + 1, Snippet: firstLine(s.text(n))})
			return
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(s.root())
	return out
}

// Err summarizes SyntaxErrors as a single error, or nil for a valid module.
func (s *Source) Err() error {
	if s.Valid() {
		return nil
	}
	errs := s.SyntaxErrors()
	if len(errs) == 0 {
		return fmt.Errorf("python syntax error")
	}
	return fmt.Errorf("python syntax error at %s", errs[0])
}

// TopLevel returns the module's named children in order.
func (s *Source) TopLevel() []Node {
	root := s.root()
	out := make([]Node, 0, root.NamedChildCount())
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		out = append(out, Node{
			Type: child.Type(),
			Text: s.text(child),
			Line: int(child.StartPoint().Row) + 1,
		})
	}
	return out
}

// HasStatements reports whether the module contains anything besides
// comments.
func (s *Source) HasStatements() bool {
	for _, node := range s.TopLevel() {
		if node.Type != "comment" {
			return true
		}
	}
	return false
}

// Imports returns every import statement at any depth.
func (s *Source) Imports() []Node {
	var out []Node
	s.visit(s.root(), func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement", "import_from_statement", "future_import_statement":
			out = append(out, Node{Type: n.Type(), Text: s.text(n), Line: int(n.StartPoint().Row) + 1})
			return false
		}
		return true
	})
	return out
}

// Classes returns module-level class definitions, including decorated ones.
func (s *Source) Classes() []Class {
	root := s.root()
	var out []Class
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		def := child
		if child.Type() == "decorated_definition" {
			def = child.ChildByFieldName("definition")
		}
		if def == nil || def.Type() != "class_definition" {
			continue
		}
		name := def.ChildByFieldName("name")
		if name == nil {
			continue
		}
		class := Class{Name: s.text(name), Line: int(def.StartPoint().Row) + 1}
		if supers := def.ChildByFieldName("superclasses"); supers != nil {
			for j := 0; j < int(supers.NamedChildCount()); j++ {
				arg := supers.NamedChild(j)
				if arg.Type() == "keyword_argument" {
					continue
				}
				class.Bases = append(class.Bases, s.text(arg))
			}
		}
		out = append(out, class)
	}
	return out
}

// Functions returns the names of module-level function definitions.
func (s *Source) Functions() []string {
	root := s.root()
	var out []string
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		def := child
		if child.Type() == "decorated_definition" {
			def = child.ChildByFieldName("definition")
		}
		if def == nil || def.Type() != "function_definition" {
			continue
		}
		if name := def.ChildByFieldName("name"); name != nil {
			out = append(out, s.text(name))
		}
	}
	return out
}

// DictLiteral describes a module-level `NAME = {...}` assignment.
type DictLiteral struct {
	Keys []string
	// NonLiteralKeys counts keys that are not plain string literals.
	NonLiteralKeys int
	// NonStringValues counts values that are not string literals or
	// concatenations of string literals.
	NonStringValues int
}

// DictAssignment finds the last module-level assignment of a dict literal to
// name. ok is false when no such assignment exists.
func (s *Source) DictAssignment(name string) (DictLiteral, bool) {
	root := s.root()
	var (
		found bool
		out   DictLiteral
	)
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		if stmt.Type() != "expression_statement" || stmt.NamedChildCount() == 0 {
			continue
		}
		assign := stmt.NamedChild(0)
		if assign.Type() != "assignment" {
			continue
		}
		left := assign.ChildByFieldName("left")
		right := assign.ChildByFieldName("right")
		if left == nil || right == nil || left.Type() != "identifier" || s.text(left) != name {
			continue
		}
		if right.Type() != "dictionary" {
			continue
		}
		found = true
		out = s.readDict(right)
	}
	return out, found
}

func (s *Source) readDict(dict *sitter.Node) DictLiteral {
	var out DictLiteral
	for i := 0; i < int(dict.NamedChildCount()); i++ {
		pair := dict.NamedChild(i)
		if pair.Type() != "pair" {
			if pair.Type() != "comment" {
				out.NonLiteralKeys++
			}
			continue
		}
		key := pair.ChildByFieldName("key")
		value := pair.ChildByFieldName("value")
		literal, ok := "", false
		if key != nil {
			literal, ok = stringLiteral(s.text(key))
		}
		if !ok {
			out.NonLiteralKeys++
			continue
		}
		out.Keys = append(out.Keys, literal)
		if value == nil || !s.isStringValue(value) {
			out.NonStringValues++
		}
	}
	return out
}

func (s *Source) isStringValue(n *sitter.Node) bool {
	switch n.Type() {
	case "string":
		return true
	case "concatenated_string":
		return true
	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			return s.isStringValue(n.NamedChild(0))
		}
	}
	return false
}

// visit walks the tree depth first; fn returns false to skip a subtree.
func (s *Source) visit(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		s.visit(n.NamedChild(i), fn)
	}
}

var stringLiteralPattern = regexp.MustCompile(`(?s)^([rRuU]?)("""|'''|"|')(.*)("""|'''|"|')$`)

// stringLiteral unquotes a plain (non f/b) Python string literal. Escape
// sequences are left as written; keys in scene scripts are identifiers.
func stringLiteral(raw string) (string, bool) {
	m := stringLiteralPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil || m[2] != m[4] {
		return "", false
	}
	return m[3], true
}

func firstLine(value string) string {
	value = strings.TrimSpace(value)
	if idx := strings.IndexByte(value, '\n'); idx >= 0 {
		value = value[:idx]
	}
	if len(value) > 60 {
		value = value[:60] + "..."
	}
	return value
}
