package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to be available at %s, got %#v", present, results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected blank command status: %#v", results[2])
	}
	if !MissingRequired(results) {
		t.Fatal("expected missing required dependency")
	}
}

func TestProjectToolsAreOptional(t *testing.T) {
	t.Setenv("PATH", "")
	statuses := CheckBinaries(ProjectTools())
	if len(statuses) == 0 {
		t.Fatal("expected project tools")
	}
	for _, status := range statuses {
		if status.Available {
			t.Fatalf("%s unexpectedly available with empty PATH", status.Name)
		}
	}
	if MissingRequired(statuses) {
		t.Fatal("optional tools must not count as missing requirements")
	}
}
