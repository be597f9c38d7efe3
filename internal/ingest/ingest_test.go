package ingest_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"scenesmith/internal/ingest"
	"scenesmith/internal/project"
	"scenesmith/internal/services"
	"scenesmith/internal/state"
	"scenesmith/internal/testsupport"
	"scenesmith/internal/validate"
)

func newIngester(layout project.Layout, dryRun bool) *ingest.Ingester {
	return ingest.New(layout, ingest.Options{
		DryRun: dryRun,
		Now:    func() time.Time { return testsupport.Clock },
	})
}

func seedScenes(t *testing.T, layout project.Layout, ids ...string) {
	t.Helper()
	store := state.NewStore(layout.StatePath(), func() time.Time { return testsupport.Clock })
	st := store.Load()
	st.Phase = state.PhaseBuildScenes
	for _, id := range ids {
		st.Scenes = append(st.Scenes, state.SceneRecord{ID: id, Title: id, NarrationKey: id, Status: state.SceneStatusPending})
	}
	if err := store.Save(&st); err != nil {
		t.Fatalf("save state: %v", err)
	}
}

func fenced(code string) string {
	return "Here is the code:\n\n```python\n" + code + "\n```\n"
}

func diagnosticCount(t *testing.T, layout project.Layout) int {
	t.Helper()
	entries, err := os.ReadDir(layout.DiagnosticsDir())
	if errors.Is(err, os.ErrNotExist) {
		return 0
	}
	if err != nil {
		t.Fatalf("read diagnostics: %v", err)
	}
	return len(entries)
}

func TestPlanAcceptsValidPlan(t *testing.T) {
	layout := testsupport.NewProject(t)
	in := newIngester(layout, false)

	text := "Sure! Here is the plan.\n```json\n" + testsupport.PlanJSON(t, 9, 30) + "\n```"
	result, err := in.Ingest(context.Background(), "plan", "", ingest.Input{Text: text})
	if err != nil {
		t.Fatalf("Ingest plan: %v", err)
	}
	if diff := cmp.Diff([]string{project.PlanFile}, result.Written); diff != "" {
		t.Fatalf("unexpected written files (-want +got):\n%s", diff)
	}
	data := testsupport.ReadText(t, layout.PlanPath())
	if !strings.Contains(data, `"Wave Part 9"`) {
		t.Fatalf("plan.json missing scenes:\n%s", data)
	}
	responses, err := os.ReadDir(layout.ResponsesDir())
	if err != nil || len(responses) != 1 {
		t.Fatalf("expected one archived response, got %v (%v)", responses, err)
	}
}

func TestPlanUsesStructuredObject(t *testing.T) {
	layout := testsupport.NewProject(t)
	in := newIngester(layout, false)

	var obj map[string]any
	if err := json.Unmarshal([]byte(testsupport.PlanJSON(t, 8, 30)), &obj); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if _, err := in.Plan(context.Background(), ingest.Input{Object: obj, Transport: "json_schema"}); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if _, err := os.Stat(layout.PlanPath()); err != nil {
		t.Fatalf("plan.json not written: %v", err)
	}
}

func TestPlanRejectsWithoutWriting(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		exitCode int
	}{
		{"seven scenes", "```json\n" + testsupport.PlanJSON(t, 7, 30) + "\n```", services.ExitSemantic},
		{"too long", testsupport.PlanJSON(t, 9, 60), services.ExitSemantic},
		{"wrong shape", `{"title": "Waves", "scenes": "many"}`, services.ExitStructural},
		{"prose only", "I could not produce a plan this time.", services.ExitStructural},
		{"empty object", "```json\n{}\n```", services.ExitStructural},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			layout := testsupport.NewProject(t)
			_, err := newIngester(layout, false).Plan(context.Background(), ingest.Input{Text: tc.text})
			if err == nil {
				t.Fatal("expected rejection")
			}
			if got := services.ExitCode(err); got != tc.exitCode {
				t.Fatalf("exit code = %d, want %d (%v)", got, tc.exitCode, err)
			}
			if _, statErr := os.Stat(layout.PlanPath()); !errors.Is(statErr, os.ErrNotExist) {
				t.Fatalf("plan.json written despite rejection: %v", statErr)
			}
			if diagnosticCount(t, layout) != 1 {
				t.Fatal("expected one diagnostic")
			}
		})
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	layout := testsupport.NewProject(t)
	result, err := newIngester(layout, true).Plan(context.Background(), ingest.Input{Text: testsupport.PlanJSON(t, 9, 30)})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !result.DryRun || len(result.Written) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(layout.PlanPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dry run wrote plan.json: %v", err)
	}
	if _, err := os.Stat(layout.ResponsesDir()); err == nil {
		entries, _ := os.ReadDir(layout.ResponsesDir())
		if len(entries) != 0 {
			t.Fatal("dry run archived the response")
		}
	}
}

func TestTraining(t *testing.T) {
	layout := testsupport.NewProject(t)
	in := newIngester(layout, false)
	if _, err := in.Training(context.Background(), ingest.Input{Text: "  I understand.  \n"}); err != nil {
		t.Fatalf("Training: %v", err)
	}
	if got := testsupport.ReadText(t, layout.TrainingAckPath()); got != "I understand.\n" {
		t.Fatalf("ack = %q", got)
	}
	if _, err := in.Training(context.Background(), ingest.Input{Text: " \n "}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for blank ack, got %v", err)
	}
}

func TestNarration(t *testing.T) {
	layout := testsupport.NewProject(t)
	seedScenes(t, layout, "scene_01_intro", "scene_02_waves")
	in := newIngester(layout, false)

	script := testsupport.NarrationScript("scene_01_intro", "scene_02_waves")
	if _, err := in.Narration(context.Background(), ingest.Input{Text: script}); err != nil {
		t.Fatalf("bare narration: %v", err)
	}
	if got := testsupport.ReadText(t, layout.NarrationPath()); got != script {
		t.Fatalf("narration script changed:\n%s", got)
	}

	_, err := in.Narration(context.Background(), ingest.Input{Text: fenced("SCRIPT = [1, 2]")})
	if services.ExitCode(err) != services.ExitStructural {
		t.Fatalf("expected structural rejection, got %v", err)
	}
	if got := testsupport.ReadText(t, layout.NarrationPath()); got != script {
		t.Fatal("rejected narration overwrote the accepted one")
	}
}

func TestSceneMergesIntoScaffold(t *testing.T) {
	layout := testsupport.NewProject(t)
	seedScenes(t, layout, "scene_01_intro", "scene_02_waves")
	in := newIngester(layout, false)

	result, err := in.Scene(context.Background(), "", ingest.Input{Text: fenced("title = Text(\"Waves\")\nself.play(Write(title))")})
	if err != nil {
		t.Fatalf("Scene: %v", err)
	}
	if diff := cmp.Diff([]string{"scenes/scene_01_intro.py"}, result.Written); diff != "" {
		t.Fatalf("unexpected written files (-want +got):\n%s", diff)
	}
	source := testsupport.ReadText(t, layout.ScenePath("scene_01_intro"))
	for _, want := range []string{
		"class Scene01Intro(VoiceoverScene):",
		`SCRIPT["scene_01_intro"]`,
		"        self.play(Write(title))\n",
	} {
		if !strings.Contains(source, want) {
			t.Fatalf("scene module missing %q:\n%s", want, source)
		}
	}
	class, err := validate.InferSceneClass([]byte(source))
	if err != nil || class != "Scene01Intro" {
		t.Fatalf("InferSceneClass = %q, %v", class, err)
	}

	if _, err := in.Scene(context.Background(), "scene_02_waves", ingest.Input{Text: fenced("self.wait(2)")}); err != nil {
		t.Fatalf("explicit target: %v", err)
	}
	if _, err := in.Scene(context.Background(), "scene_09_nope", ingest.Input{Text: fenced("self.wait(2)")}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown scene, got %v", err)
	}
}

func TestSceneRejectsContractViolations(t *testing.T) {
	bodies := map[string]string{
		"import":      "from manim import *\nself.wait(1)",
		"class":       "class Intro(Scene):\n    def construct(self):\n        self.wait(1)",
		"placeholder": "self.play(Write(Text(\"{{title}}\")))",
		"sentinel":    "# SLOT_START\nself.wait(1)",
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			layout := testsupport.NewProject(t)
			seedScenes(t, layout, "scene_01_intro")
			_, err := newIngester(layout, false).Scene(context.Background(), "", ingest.Input{Text: fenced(body)})
			if services.ExitCode(err) != services.ExitStructural {
				t.Fatalf("expected structural rejection, got %v", err)
			}
			if _, statErr := os.Stat(layout.ScenePath("scene_01_intro")); !errors.Is(statErr, os.ErrNotExist) {
				t.Fatal("scene written despite rejection")
			}
		})
	}
}

func TestSceneRequiresPlan(t *testing.T) {
	layout := testsupport.NewProject(t)
	_, err := newIngester(layout, false).Scene(context.Background(), "", ingest.Input{Text: fenced("self.wait(1)")})
	if !services.IsRetryable(err) {
		t.Fatalf("expected retryable error without scenes, got %v", err)
	}
}

func TestSceneBrokenScaffoldIsConfiguration(t *testing.T) {
	layout := testsupport.NewProject(t)
	seedScenes(t, layout, "scene_01_intro")
	testsupport.WriteText(t, layout.ScaffoldPath(), "class {{class_name}}(Scene):\n    def construct(self):\n        pass\n")

	_, err := newIngester(layout, false).Scene(context.Background(), "", ingest.Input{Text: fenced("self.wait(1)")})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSceneRepairPreservesSurroundings(t *testing.T) {
	layout := testsupport.NewProject(t)
	seedScenes(t, layout, "scene_01_intro")
	in := newIngester(layout, false)
	if _, err := in.Scene(context.Background(), "", ingest.Input{Text: fenced("self.wait(1)")}); err != nil {
		t.Fatalf("Scene: %v", err)
	}
	path := layout.ScenePath("scene_01_intro")
	edited := strings.Replace(testsupport.ReadText(t, path), "self.wait(0.5)", "self.wait(3)", 1)
	testsupport.WriteText(t, path, edited)

	if _, err := in.SceneRepair(context.Background(), "scene_01_intro", ingest.Input{Text: fenced("self.play(Create(Circle()))")}); err != nil {
		t.Fatalf("SceneRepair: %v", err)
	}
	repaired := testsupport.ReadText(t, path)
	if !strings.Contains(repaired, "self.wait(3)") || !strings.Contains(repaired, "self.play(Create(Circle()))") {
		t.Fatalf("unexpected repaired module:\n%s", repaired)
	}
	if strings.Contains(repaired, "        self.wait(1)\n        # SLOT_END") {
		t.Fatal("old slot body survived repair")
	}
}

func TestSceneQC(t *testing.T) {
	layout := testsupport.NewProject(t)
	seedScenes(t, layout, "scene_01_intro", "scene_02_waves")
	in := newIngester(layout, false)

	bundle := strings.Join([]string{
		"Scene 1 overlaps the title; scene 2 runs long.",
		"```python scene=scene_01_intro",
		"self.play(FadeIn(Text(\"Intro\")))",
		"```",
		"```python scene=scene_02_waves",
		"self.wait(1)",
		"```",
	}, "\n")
	result, err := in.SceneQC(context.Background(), ingest.Input{Text: bundle})
	if err != nil {
		t.Fatalf("SceneQC: %v", err)
	}
	want := []string{"scenes/scene_01_intro.py", "scenes/scene_02_waves.py", "logs/scene_qc_report.md"}
	if diff := cmp.Diff(want, result.Written); diff != "" {
		t.Fatalf("unexpected written files (-want +got):\n%s", diff)
	}
	if got := testsupport.ReadText(t, layout.QCReportPath()); !strings.Contains(got, "runs long") {
		t.Fatalf("report = %q", got)
	}
}

func TestSceneQCIsAllOrNothing(t *testing.T) {
	layout := testsupport.NewProject(t)
	seedScenes(t, layout, "scene_01_intro", "scene_02_waves")

	bundle := strings.Join([]string{
		"Fixes below.",
		"```python scene=scene_01_intro",
		"self.wait(1)",
		"```",
		"```python scene=scene_02_waves",
		"import numpy as np",
		"```",
	}, "\n")
	_, err := newIngester(layout, false).SceneQC(context.Background(), ingest.Input{Text: bundle})
	if services.ExitCode(err) != services.ExitStructural || !strings.Contains(err.Error(), "scene_02_waves") {
		t.Fatalf("expected structural rejection naming scene_02_waves, got %v", err)
	}
	for _, id := range []string{"scene_01_intro", "scene_02_waves"} {
		if _, statErr := os.Stat(layout.ScenePath(id)); !errors.Is(statErr, os.ErrNotExist) {
			t.Fatalf("%s written despite bundle rejection", id)
		}
	}
	if _, statErr := os.Stat(layout.QCReportPath()); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("report written despite bundle rejection")
	}
}

func TestUnknownPhase(t *testing.T) {
	layout := testsupport.NewProject(t)
	_, err := newIngester(layout, false).Ingest(context.Background(), "render", "", ingest.Input{Text: "x"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(layout.Root, "render")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("unexpected file created")
	}
}
