package prompts_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"scenesmith/internal/prompts"
	"scenesmith/internal/state"
	"scenesmith/internal/validate"
)

func sampleState() state.ProjectState {
	st := state.New("waves", "How waves move", time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	st.Scenes = []state.SceneRecord{
		{ID: "scene_01_intro", Title: "Intro", NarrationKey: "scene_01_intro", NarrationSummary: "Set the stage.", EstimatedDuration: 30, Animations: []string{"Write"}},
		{ID: "scene_02_sum", Title: "Sum", NarrationKey: "scene_02_sum", NarrationSummary: "Add waves.", EstimatedDuration: 40, RiskFlags: []string{"dense_math"}},
	}
	return st
}

func TestBuildPlanUsesBoundsAndJSON(t *testing.T) {
	req, err := prompts.Build("plan", prompts.Input{State: sampleState(), Bounds: validate.DefaultPlanBounds()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !req.JSON {
		t.Fatal("plan prompt should use the structured channel")
	}
	for _, want := range []string{"How waves move", "between 8 and 12 scenes", "between 20 and 45 seconds", "between 240 and 480 seconds"} {
		if !strings.Contains(req.User, want) {
			t.Fatalf("plan prompt missing %q:\n%s", want, req.User)
		}
	}
}

func TestBuildNarrationListsKeys(t *testing.T) {
	req, err := prompts.Build("narration", prompts.Input{State: sampleState()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if req.JSON || !strings.Contains(req.User, "- scene_01_intro: Intro") || !strings.Contains(req.User, "- scene_02_sum: Sum") {
		t.Fatalf("unexpected narration request: %+v", req)
	}
	if _, err := prompts.Build("narration", prompts.Input{}); err == nil {
		t.Fatal("expected error without scenes")
	}
}

func TestBuildSceneAndRepair(t *testing.T) {
	st := sampleState()
	req, err := prompts.Build("build_scenes", prompts.Input{State: st, Scene: st.Scenes[1]})
	if err != nil {
		t.Fatalf("Build scene: %v", err)
	}
	if !strings.Contains(req.User, "Known risks: dense_math") || !strings.Contains(req.System, "construct()") {
		t.Fatalf("unexpected scene request: %+v", req)
	}

	if _, err := prompts.Build("scene_repair", prompts.Input{State: st, Scene: st.Scenes[0]}); err == nil {
		t.Fatal("expected error without current module")
	}
	req, err = prompts.Build("scene_repair", prompts.Input{State: st, Scene: st.Scenes[0], SceneSource: "class A(Scene):\n    pass\n", Problem: "Title overlaps"})
	if err != nil {
		t.Fatalf("Build repair: %v", err)
	}
	if !strings.Contains(req.User, "Problem: Title overlaps") || !strings.Contains(req.User, "```python\nclass A(Scene):\n    pass\n```") {
		t.Fatalf("unexpected repair prompt:\n%s", req.User)
	}
}

func TestBuildUnsupportedPhase(t *testing.T) {
	if _, err := prompts.Build("assemble", prompts.Input{}); !errors.Is(err, prompts.ErrUnsupportedPhase) {
		t.Fatalf("expected ErrUnsupportedPhase, got %v", err)
	}
}
