package main

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"scenesmith/internal/state"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Phase", statusError, "error", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Phase:", "[ERROR] error")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Phase", statusOK, "complete", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestProjectLinesAndSceneRows(t *testing.T) {
	st := state.New("waves", "How waves move", time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	st.Phase = state.PhaseBuildScenes
	st.Scenes = []state.SceneRecord{
		{ID: "scene_01_intro", Title: "Intro", EstimatedDuration: 30, Status: state.SceneStatusBuilt, ClassName: "Scene01Intro"},
		{ID: "scene_02_sum", Title: "Sum", EstimatedDuration: 40},
	}
	st.CurrentSceneIndex = 1
	st.Errors = []string{"build_scenes: scene scene_02_sum source missing"}

	lines := strings.Join(projectLines(st, false), "\n")
	for _, want := range []string{"[INFO] build_scenes", "[INFO] 1 of 2 built", "[ERROR] 1 recorded", "[OK] no"} {
		if !strings.Contains(lines, want) {
			t.Fatalf("project lines missing %q:\n%s", want, lines)
		}
	}

	rows := sceneRows(st)
	if len(rows) != 2 || rows[0][0] != "" || rows[1][0] != ">" {
		t.Fatalf("unexpected cursor markers: %v", rows)
	}
	if rows[1][5] != "pending" || rows[0][6] != "Scene01Intro" || rows[1][4] != "40s" {
		t.Fatalf("unexpected rows: %v", rows)
	}

	table := renderTable(tableSpec{Title: "Scenes", Headers: []string{"", "#", "ID"}, Rows: rows, Footer: "2 scenes"})
	if !strings.Contains(table, "scene_02_sum") || !strings.Contains(table, "2 scenes") {
		t.Fatalf("unexpected table:\n%s", table)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
