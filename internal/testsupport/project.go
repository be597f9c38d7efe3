package testsupport

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"scenesmith/internal/project"
)

// Clock is a fixed reference time for deterministic tests.
var Clock = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

// NewProject initializes a project in a temp directory.
func NewProject(t testing.TB) project.Layout {
	t.Helper()

	layout := project.NewLayout(t.TempDir())
	if _, _, err := project.Init(layout, project.InitOptions{Name: "demo", Topic: "How waves move", Now: Clock}); err != nil {
		t.Fatalf("init project: %v", err)
	}
	return layout
}

// PlanJSON renders a plan with n scenes of the given duration each.
func PlanJSON(t testing.TB, n int, seconds float64) string {
	t.Helper()

	scenes := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		scenes = append(scenes, map[string]any{
			"id":                         fmt.Sprintf("collab-%d", i+1),
			"title":                      fmt.Sprintf("Wave Part %d", i+1),
			"narration_summary":          "Explain one property of waves.",
			"estimated_duration_seconds": seconds,
			"estimated_words":            80,
			"animations":                 []string{"Write", "Create"},
			"complexity":                 "medium",
			"risk_flags":                 []string{},
		})
	}
	data, err := json.MarshalIndent(map[string]any{
		"title":       "Waves",
		"description": "An introduction to waves.",
		"scenes":      scenes,
	}, "", "  ")
	if err != nil {
		t.Fatalf("marshal plan: %v", err)
	}
	return string(data)
}

// NarrationScript renders a narration module defining SCRIPT for keys.
func NarrationScript(keys ...string) string {
	var b strings.Builder
	b.WriteString("SCRIPT = {\n")
	for _, key := range keys {
		fmt.Fprintf(&b, "    %q: \"Narration for %s.\",\n", key, key)
	}
	b.WriteString("}\n")
	return b.String()
}

// SceneSource renders a minimal scene module declaring className.
func SceneSource(className string) string {
	return "from manim import *\n\n\nclass " + className + "(Scene):\n    def construct(self):\n        self.wait(1)\n"
}
