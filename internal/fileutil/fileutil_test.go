package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomicReplacesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "state.json")

	if err := WriteFileAtomic(target, []byte("first"), 0o644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFileAtomic(target, []byte("second"), 0o644); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("content = %q, want second", got)
	}

	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestWriteJSONAtomicEndsWithNewline(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.json")
	if err := WriteJSONAtomic(target, map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), "}\n") {
		t.Fatalf("expected trailing newline, got %q", data)
	}
}

func TestReadOptionalAndExists(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.txt")
	if _, ok, err := ReadOptional(missing); ok || err != nil {
		t.Fatalf("ReadOptional(missing) ok=%v err=%v", ok, err)
	}
	if Exists(missing) || NonEmpty(missing) {
		t.Fatal("missing file reported as present")
	}

	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if !Exists(empty) {
		t.Fatal("expected empty file to exist")
	}
	if NonEmpty(empty) {
		t.Fatal("expected empty file to be reported empty")
	}
	if Exists(dir) {
		t.Fatal("directories are not regular files")
	}
}
