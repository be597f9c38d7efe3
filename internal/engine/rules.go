package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"scenesmith/internal/fileutil"
	"scenesmith/internal/services"
	"scenesmith/internal/state"
	"scenesmith/internal/textutil"
	"scenesmith/internal/validate"
	"scenesmith/internal/voice"
)

const listLimit = 5

func (e *Engine) applyPlan(st *state.ProjectState) error {
	phase := string(state.PhasePlan)
	path := e.layout.PlanPath()
	data, ok, err := fileutil.ReadOptional(path)
	if err != nil {
		return services.Retryable(phase, fmt.Sprintf("plan artifact unreadable: %v", err))
	}
	if !ok {
		return services.Retryable(phase, "plan artifact missing: "+e.layout.Rel(path))
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return services.Structural(phase, "plan artifact is not a JSON object", err)
	}
	plan, err := validate.PlanShape(obj)
	if err != nil {
		return err
	}
	if err := validate.SemanticPlan(plan, e.bounds); err != nil {
		return err
	}

	st.Scenes = DeriveScenes(plan)
	st.CurrentSceneIndex = 0
	st.PlanFile = state.StringRef(e.layout.Rel(path))
	st.NarrationFile = nil
	st.Flags.ForceReplan = false
	st.Flags.NeedsHumanReview = false
	st.Phase = state.PhaseReview
	return nil
}

// DeriveScenes builds scene records from a validated plan. IDs are generated
// from position and title, so they are unique; the plan's own IDs are
// ignored.
func DeriveScenes(plan validate.Plan) []state.SceneRecord {
	out := make([]state.SceneRecord, 0, len(plan.Scenes))
	for i, ps := range plan.Scenes {
		id := state.CanonicalSceneID(i+1, ps.Title)
		out = append(out, state.SceneRecord{
			ID:                id,
			Title:             ps.Title,
			NarrationKey:      id,
			NarrationSummary:  ps.NarrationSummary,
			EstimatedWords:    ps.EstimatedWords,
			EstimatedDuration: ps.EstimatedDuration,
			Animations:        append([]string{}, ps.Animations...),
			Complexity:        ps.Complexity,
			RiskFlags:         append([]string{}, ps.RiskFlags...),
			Status:            state.SceneStatusPending,
		})
	}
	return out
}

var folder = cases.Fold()

// normalizeAck trims, case-folds and strips trailing punctuation.
func normalizeAck(value string) string {
	value = folder.String(strings.TrimSpace(value))
	value = strings.TrimRightFunc(value, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	return value
}

func (e *Engine) applyTraining(st *state.ProjectState) error {
	phase := string(state.PhaseTraining)
	path := e.layout.TrainingAckPath()
	data, ok, err := fileutil.ReadOptional(path)
	if err != nil {
		return services.Retryable(phase, fmt.Sprintf("training acknowledgment unreadable: %v", err))
	}
	if !ok {
		return services.Retryable(phase, "training acknowledgment missing: "+e.layout.Rel(path))
	}
	if got := normalizeAck(string(data)); got != e.ackToken {
		return services.Retryable(phase, fmt.Sprintf("training acknowledgment: expected %q, got %q", e.ackToken, textutil.Summarize(got, 40)))
	}
	st.Phase = state.PhaseNarration
	return nil
}

func (e *Engine) applyNarration(st *state.ProjectState) error {
	phase := state.PhaseNarration
	if len(st.Scenes) == 0 {
		return halt(st, phase, "no scenes to narrate; re-plan required")
	}
	path := e.layout.NarrationPath()
	data, ok, err := fileutil.ReadOptional(path)
	if err != nil {
		return services.Retryable(string(phase), fmt.Sprintf("narration script unreadable: %v", err))
	}
	if !ok {
		return services.Retryable(string(phase), "narration script missing: "+e.layout.Rel(path))
	}
	script, err := validate.Narration(string(data))
	if err != nil {
		return err
	}
	required := make([]string, 0, len(st.Scenes))
	for _, scene := range st.Scenes {
		required = append(required, scene.NarrationKey)
	}
	if missing := validate.MissingKeys(script, required); len(missing) > 0 {
		return services.Retryable(string(phase), fmt.Sprintf("narration script missing keys: %s", joinLimited(missing)))
	}

	st.NarrationFile = state.StringRef(e.layout.Rel(path))
	st.CurrentSceneIndex = firstUnbuilt(st.Scenes)
	st.Phase = state.PhaseBuildScenes
	return nil
}

// applyBuildScenes verifies the scene under the cursor. One scene is built
// per call; the phase is left once every scene is built.
func (e *Engine) applyBuildScenes(st *state.ProjectState) error {
	phase := string(state.PhaseBuildScenes)
	if len(st.Scenes) == 0 {
		return halt(st, state.PhaseBuildScenes, "no scenes to build; re-plan required")
	}
	if st.CurrentSceneIndex >= len(st.Scenes) {
		st.CurrentSceneIndex = firstUnbuilt(st.Scenes)
	}
	if st.CurrentSceneIndex < len(st.Scenes) {
		idx := st.CurrentSceneIndex
		scene := st.Scenes[idx]
		path := e.layout.ScenePath(scene.ID)
		data, ok, err := fileutil.ReadOptional(path)
		if err != nil {
			return services.Retryable(phase, fmt.Sprintf("scene %s source unreadable: %v", scene.ID, err))
		}
		if !ok {
			return services.Retryable(phase, fmt.Sprintf("scene %s source missing: %s", scene.ID, e.layout.Rel(path)))
		}
		className, err := validate.InferSceneClass(data)
		if err != nil {
			return services.Retryable(phase, fmt.Sprintf("scene %s class name not inferable: %v", scene.ID, err))
		}
		scene.Status = state.SceneStatusBuilt
		scene.File = e.layout.Rel(path)
		scene.ClassName = className
		st.Scenes[idx] = scene
		st.CurrentSceneIndex = nextUnbuilt(st.Scenes, idx+1)
	}
	if st.CurrentSceneIndex >= len(st.Scenes) {
		st.CurrentSceneIndex = len(st.Scenes)
		st.Phase = state.PhasePrecacheVoiceovers
	}
	return nil
}

func (e *Engine) applyPrecache(st *state.ProjectState) error {
	phase := string(state.PhasePrecacheVoiceovers)
	if _, err := voice.ReadCacheIndex(e.layout.VoiceCachePath()); err != nil {
		if errors.Is(err, voice.ErrCacheMissing) {
			return services.Retryable(phase, "voice cache index missing: "+e.layout.Rel(e.layout.VoiceCachePath()))
		}
		return services.Retryable(phase, err.Error())
	}
	configPath := e.layout.VoiceConfigPath()
	if fileutil.Exists(configPath) {
		if _, err := voice.LoadConfig(configPath); err != nil {
			return services.Retryable(phase, err.Error())
		}
		st.VoiceConfigFile = state.StringRef(e.layout.Rel(configPath))
	}
	st.Phase = state.PhaseFinalRender
	return nil
}

func (e *Engine) applyFinalRender(st *state.ProjectState) error {
	var missing []string
	for _, scene := range st.Scenes {
		if !fileutil.NonEmpty(e.layout.SceneVideoPath(scene.ID)) {
			missing = append(missing, scene.ID)
		}
	}
	if len(missing) > 0 {
		return services.Retryable(string(state.PhaseFinalRender), fmt.Sprintf("rendered videos missing for %d of %d scenes: %s", len(missing), len(st.Scenes), joinLimited(missing)))
	}
	for i := range st.Scenes {
		st.Scenes[i].VideoFile = e.layout.Rel(e.layout.SceneVideoPath(st.Scenes[i].ID))
	}
	st.Phase = state.PhaseAssemble
	return nil
}

func (e *Engine) applyAssemble(st *state.ProjectState) error {
	path := e.layout.FinalVideoPath()
	if !fileutil.NonEmpty(path) {
		return services.Retryable(string(state.PhaseAssemble), "final video missing: "+e.layout.Rel(path))
	}
	st.Phase = state.PhaseComplete
	return nil
}

func firstUnbuilt(scenes []state.SceneRecord) int {
	return nextUnbuilt(scenes, 0)
}

func nextUnbuilt(scenes []state.SceneRecord, from int) int {
	for i := from; i < len(scenes); i++ {
		if !scenes[i].Built() {
			return i
		}
	}
	return len(scenes)
}

func joinLimited(values []string) string {
	if len(values) <= listLimit {
		return strings.Join(values, ", ")
	}
	return strings.Join(values[:listLimit], ", ") + fmt.Sprintf(" and %d more", len(values)-listLimit)
}
