package state

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Phase identifies a pipeline stage.
type Phase string

// Pipeline phases in order. Complete and Error are terminal.
const (
	PhaseInit               Phase = "init"
	PhasePlan               Phase = "plan"
	PhaseReview             Phase = "review"
	PhaseTraining           Phase = "training"
	PhaseNarration          Phase = "narration"
	PhaseBuildScenes        Phase = "build_scenes"
	PhasePrecacheVoiceovers Phase = "precache_voiceovers"
	PhaseFinalRender        Phase = "final_render"
	PhaseAssemble           Phase = "assemble"
	PhaseComplete           Phase = "complete"
	PhaseError              Phase = "error"
)

var orderedPhases = []Phase{
	PhaseInit,
	PhasePlan,
	PhaseReview,
	PhaseTraining,
	PhaseNarration,
	PhaseBuildScenes,
	PhasePrecacheVoiceovers,
	PhaseFinalRender,
	PhaseAssemble,
	PhaseComplete,
	PhaseError,
}

// AllPhases returns every phase in pipeline order.
func AllPhases() []Phase {
	return slices.Clone(orderedPhases)
}

// ParsePhase resolves a phase name, ignoring case and surrounding space.
func ParsePhase(value string) (Phase, bool) {
	candidate := Phase(strings.ToLower(strings.TrimSpace(value)))
	if slices.Contains(orderedPhases, candidate) {
		return candidate, true
	}
	return "", false
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError
}

func (p Phase) String() string { return string(p) }

// SceneStatus tracks a scene's build lifecycle.
type SceneStatus string

const (
	SceneStatusPending SceneStatus = "pending"
	SceneStatusBuilt   SceneStatus = "built"
)

// SceneRecord is one scene of the plan. Lifecycle fields stay empty until
// the phase that produces them records them.
type SceneRecord struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	NarrationKey      string         `json:"narration_key"`
	NarrationSummary  string         `json:"narration_summary"`
	EstimatedWords    int            `json:"estimated_words"`
	EstimatedDuration float64        `json:"estimated_duration"`
	Animations        []string       `json:"animations"`
	Complexity        string         `json:"complexity"`
	RiskFlags         []string       `json:"risk_flags"`
	Status            SceneStatus    `json:"status,omitempty"`
	File              string         `json:"file,omitempty"`
	ClassName         string         `json:"class_name,omitempty"`
	VideoFile         string         `json:"video_file,omitempty"`
	Verification      map[string]any `json:"verification,omitempty"`
}

// Built reports whether the scene's source has been verified.
func (s SceneRecord) Built() bool {
	return s.Status == SceneStatusBuilt
}

// Flags are operator switches carried with the record.
type Flags struct {
	NeedsHumanReview bool `json:"needs_human_review"`
	DryRun           bool `json:"dry_run"`
	ForceReplan      bool `json:"force_replan"`
}

// HistoryEvent is one append-only entry of the transition log.
type HistoryEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	Run        int       `json:"run"`
	RequestID  string    `json:"request_id,omitempty"`
	From       Phase     `json:"from"`
	To         Phase     `json:"to"`
	SceneIndex int       `json:"scene_index"`
	Note       string    `json:"note,omitempty"`
}

// ProjectState is the persisted project record.
type ProjectState struct {
	ProjectName       string         `json:"project_name"`
	Topic             string         `json:"topic"`
	Phase             Phase          `json:"phase"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	RunCount          int            `json:"run_count"`
	PlanFile          *string        `json:"plan_file"`
	NarrationFile     *string        `json:"narration_file"`
	VoiceConfigFile   *string        `json:"voice_config_file"`
	Scenes            []SceneRecord  `json:"scenes"`
	CurrentSceneIndex int            `json:"current_scene_index"`
	Errors            []string       `json:"errors"`
	History           []HistoryEvent `json:"history"`
	Flags             Flags          `json:"flags"`
}

// New returns a fresh record at PhaseInit.
func New(projectName, topic string, now time.Time) ProjectState {
	now = now.UTC()
	return ProjectState{
		ProjectName: strings.TrimSpace(projectName),
		Topic:       strings.TrimSpace(topic),
		Phase:       PhaseInit,
		CreatedAt:   now,
		UpdatedAt:   now,
		Scenes:      []SceneRecord{},
		Errors:      []string{},
		History:     []HistoryEvent{},
	}
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (s ProjectState) Clone() ProjectState {
	out := s
	out.PlanFile = cloneString(s.PlanFile)
	out.NarrationFile = cloneString(s.NarrationFile)
	out.VoiceConfigFile = cloneString(s.VoiceConfigFile)
	out.Scenes = make([]SceneRecord, len(s.Scenes))
	for i, scene := range s.Scenes {
		scene.Animations = slices.Clone(scene.Animations)
		scene.RiskFlags = slices.Clone(scene.RiskFlags)
		scene.Verification = maps.Clone(scene.Verification)
		out.Scenes[i] = scene
	}
	out.Errors = append([]string{}, s.Errors...)
	out.History = append([]HistoryEvent{}, s.History...)
	return out
}

// AddError records msg unless it is already present. It reports whether the
// error was new.
func (s *ProjectState) AddError(msg string) bool {
	msg = strings.TrimSpace(msg)
	if msg == "" || slices.Contains(s.Errors, msg) {
		return false
	}
	s.Errors = append(s.Errors, msg)
	return true
}

// CurrentScene returns the scene under the cursor.
func (s ProjectState) CurrentScene() (SceneRecord, bool) {
	if s.CurrentSceneIndex < 0 || s.CurrentSceneIndex >= len(s.Scenes) {
		return SceneRecord{}, false
	}
	return s.Scenes[s.CurrentSceneIndex], true
}

// BuiltCount returns how many scenes are built.
func (s ProjectState) BuiltCount() int {
	n := 0
	for _, scene := range s.Scenes {
		if scene.Built() {
			n++
		}
	}
	return n
}

// StringRef returns a pointer to value, or nil when value is empty.
func StringRef(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// Deref returns the pointed-to string or "".
func Deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
