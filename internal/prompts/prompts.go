package prompts

import (
	"errors"
	"fmt"
	"strings"

	"scenesmith/internal/state"
	"scenesmith/internal/validate"
)

// ErrUnsupportedPhase reports a phase with no generation prompt.
var ErrUnsupportedPhase = errors.New("phase has no generation prompt")

// PlanSystemPrompt asks for the scene plan as a single JSON object.
const PlanSystemPrompt = `You plan short narrated math and science explainer videos animated with Manim.

Respond ONLY with a JSON object of this shape:
{"title": "...", "description": "...", "target_duration_seconds": 300,
 "scenes": [{"id": "...", "title": "...", "narration_summary": "...",
   "estimated_duration_seconds": 30, "estimated_words": 80,
   "animations": ["Write", "Create"], "complexity": "low|medium|high",
   "risk_flags": []}]}

Every scene needs a non-empty title, a non-empty narration_summary and at least one animation.`

// NarrationSystemPrompt asks for the narration module.
const NarrationSystemPrompt = `You write voiceover narration for a Manim explainer video.

Respond with one fenced python code block and nothing else. The block must define a
single module-level dict literal named SCRIPT whose keys are the scene keys listed
below and whose values are plain string literals with the spoken narration.`

// SceneSystemPrompt asks for a construct() body fragment.
const SceneSystemPrompt = `You write the body of a Manim construct() method.

Respond with one fenced python code block containing ONLY the statements that go
inside construct(). Do not write imports, class definitions, def construct, comments
such as SLOT_START or SLOT_END, or template placeholders. "self" is a VoiceoverScene
and "narration" already holds this scene's narration text; wrap animations in
"with self.voiceover(text=narration) as tracker:" where it helps the timing.`

// RepairSystemPrompt asks for a corrected construct() body.
const RepairSystemPrompt = SceneSystemPrompt + `

The current module is shown below together with the problem to fix. Return the full
corrected construct() body, not a diff.`

// Request is one collaborator call.
type Request struct {
	Phase  string
	System string
	User   string
	// JSON selects the structured completion channel.
	JSON bool
}

// Input carries what a prompt may reference.
type Input struct {
	State  state.ProjectState
	Bounds validate.PlanBounds
	// Scene targets build_scenes and scene_repair.
	Scene state.SceneRecord
	// SceneSource is the current module for scene_repair.
	SceneSource string
	// Problem describes what scene_repair should fix.
	Problem string
}

// Build returns the request for phase.
func Build(phase string, in Input) (Request, error) {
	switch phase {
	case "plan":
		return Request{Phase: phase, System: PlanSystemPrompt, User: planUser(in), JSON: true}, nil
	case "narration":
		if len(in.State.Scenes) == 0 {
			return Request{}, errors.New("narration prompt needs a plan with scenes")
		}
		return Request{Phase: phase, System: NarrationSystemPrompt, User: narrationUser(in)}, nil
	case "build_scenes":
		if in.Scene.ID == "" {
			return Request{}, errors.New("scene prompt needs a target scene")
		}
		return Request{Phase: phase, System: SceneSystemPrompt, User: sceneUser(in)}, nil
	case "scene_repair":
		if in.Scene.ID == "" || strings.TrimSpace(in.SceneSource) == "" {
			return Request{}, errors.New("repair prompt needs a target scene and its current module")
		}
		return Request{Phase: phase, System: RepairSystemPrompt, User: repairUser(in)}, nil
	default:
		return Request{}, fmt.Errorf("%w: %s", ErrUnsupportedPhase, phase)
	}
}

func planUser(in Input) string {
	b := in.Bounds
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n\n", strings.TrimSpace(in.State.Topic))
	fmt.Fprintf(&sb, "Plan between %d and %d scenes.\n", b.MinScenes, b.MaxScenes)
	fmt.Fprintf(&sb, "Each scene must last between %g and %g seconds.\n", b.MinSceneSeconds, b.MaxSceneSeconds)
	fmt.Fprintf(&sb, "The whole video must last between %g and %g seconds.\n", b.MinTotalSeconds, b.MaxTotalSeconds)
	return sb.String()
}

func narrationUser(in Input) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n\nScenes (key: title - summary, target seconds):\n", strings.TrimSpace(in.State.Topic))
	for _, scene := range in.State.Scenes {
		fmt.Fprintf(&sb, "- %s: %s - %s (%gs)\n", scene.NarrationKey, scene.Title, scene.NarrationSummary, scene.EstimatedDuration)
	}
	return sb.String()
}

func sceneUser(in Input) string {
	s := in.Scene
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n", strings.TrimSpace(in.State.Topic))
	fmt.Fprintf(&sb, "Scene: %s (%s)\n", s.Title, s.ID)
	fmt.Fprintf(&sb, "Narration summary: %s\n", s.NarrationSummary)
	fmt.Fprintf(&sb, "Target duration: %g seconds\n", s.EstimatedDuration)
	if len(s.Animations) > 0 {
		fmt.Fprintf(&sb, "Animations to use: %s\n", strings.Join(s.Animations, ", "))
	}
	if len(s.RiskFlags) > 0 {
		fmt.Fprintf(&sb, "Known risks: %s\n", strings.Join(s.RiskFlags, ", "))
	}
	return sb.String()
}

func repairUser(in Input) string {
	var sb strings.Builder
	sb.WriteString(sceneUser(in))
	problem := strings.TrimSpace(in.Problem)
	if problem == "" {
		problem = "The scene renders incorrectly; tidy the layout and timing."
	}
	fmt.Fprintf(&sb, "\nProblem: %s\n\nCurrent module:\n```python\n%s\n```\n", problem, strings.TrimRight(in.SceneSource, "\n"))
	return sb.String()
}
