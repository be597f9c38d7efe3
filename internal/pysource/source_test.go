package pysource_test

import (
	"reflect"
	"testing"

	"scenesmith/internal/pysource"
)

func parse(t *testing.T, src string) *pysource.Source {
	t.Helper()
	source, err := pysource.ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	t.Cleanup(source.Close)
	return source
}

func TestValidFragment(t *testing.T) {
	src := parse(t, "title = Text(\"Fourier\")\nself.play(Write(title))\nself.wait(1)\n")
	if !src.Valid() {
		t.Fatalf("expected valid fragment, errors: %v", src.SyntaxErrors())
	}
	if err := src.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	if !src.HasStatements() {
		t.Fatal("expected statements")
	}
}

func TestSyntaxErrorsLocated(t *testing.T) {
	src := parse(t, "x = 1\ny = (2,\n")
	if src.Valid() {
		t.Fatal("expected syntax error")
	}
	errs := src.SyntaxErrors()
	if len(errs) == 0 {
		t.Fatal("expected at least one located error")
	}
	if errs[0].Line < 1 || errs[0].Column < 1 {
		t.Fatalf("expected 1-based position, got %+v", errs[0])
	}
	if src.Err() == nil {
		t.Fatal("expected Err to be non-nil")
	}
}

func TestCommentOnlyHasNoStatements(t *testing.T) {
	src := parse(t, "# just a note\n\n# another\n")
	if src.HasStatements() {
		t.Fatal("comment-only source should have no statements")
	}
}

func TestImports(t *testing.T) {
	src := parse(t, "from __future__ import annotations\nimport numpy as np\nfrom manim import *\nx = 1\n")
	imports := src.Imports()
	if len(imports) != 3 {
		t.Fatalf("expected 3 imports, got %+v", imports)
	}
	if imports[0].Line != 1 || imports[2].Line != 3 {
		t.Fatalf("unexpected import lines: %+v", imports)
	}
}

func TestClassesAndFunctions(t *testing.T) {
	src := parse(t, `from manim import *

class Helper:
    pass

@dataclass
class Scene01Intro(VoiceoverScene, metaclass=Meta):
    def construct(self):
        self.wait(1)

def construct(self):
    pass
`)
	classes := src.Classes()
	if len(classes) != 2 {
		t.Fatalf("expected 2 classes, got %+v", classes)
	}
	if classes[1].Name != "Scene01Intro" {
		t.Fatalf("unexpected class name %q", classes[1].Name)
	}
	if !reflect.DeepEqual(classes[1].Bases, []string{"VoiceoverScene"}) {
		t.Fatalf("unexpected bases %v", classes[1].Bases)
	}
	if got := src.Functions(); !reflect.DeepEqual(got, []string{"construct"}) {
		t.Fatalf("unexpected functions %v", got)
	}
}

func TestDictAssignment(t *testing.T) {
	src := parse(t, `SCRIPT = {"old": "x"}
SCRIPT = {
    # comment inside
    "scene_01_intro": "Welcome to the show.",
    'scene_02_waves': ("Waves " "add up."),
    f"scene_{n}": "dynamic",
    "scene_03_sum": narrate(),
}
`)
	dict, ok := src.DictAssignment("SCRIPT")
	if !ok {
		t.Fatal("expected SCRIPT assignment")
	}
	if !reflect.DeepEqual(dict.Keys, []string{"scene_01_intro", "scene_02_waves", "scene_03_sum"}) {
		t.Fatalf("unexpected keys %v", dict.Keys)
	}
	if dict.NonLiteralKeys != 1 {
		t.Fatalf("expected one non-literal key, got %d", dict.NonLiteralKeys)
	}
	if dict.NonStringValues != 1 {
		t.Fatalf("expected one non-string value, got %d", dict.NonStringValues)
	}

	if _, ok := src.DictAssignment("MISSING"); ok {
		t.Fatal("unexpected assignment for MISSING")
	}
}

func TestDedentAndIndent(t *testing.T) {
	in := "        a = 1\n\n        if a:\n            b = 2\n"
	want := "a = 1\n\nif a:\n    b = 2\n"
	if got := pysource.Dedent(in); got != want {
		t.Fatalf("Dedent = %q, want %q", got, want)
	}
	if got := pysource.Indent("a = 1\n\nb = 2", "    "); got != "    a = 1\n\n    b = 2" {
		t.Fatalf("Indent = %q", got)
	}
	if got := pysource.Dedent("x = 1\n  y"); got != "x = 1\n  y" {
		t.Fatalf("Dedent without common prefix changed input: %q", got)
	}
}
