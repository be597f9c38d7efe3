package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"scenesmith/internal/artifact"
	"scenesmith/internal/logging"
	"scenesmith/internal/scaffold"
	"scenesmith/internal/services"
	"scenesmith/internal/state"
	"scenesmith/internal/textutil"
	"scenesmith/internal/validate"
)

// Ingest dispatches input to the handler for phase. target selects a scene
// for build_scenes and scene_repair; empty means the scene at the cursor.
func (in *Ingester) Ingest(ctx context.Context, phase, target string, input Input) (Result, error) {
	switch strings.ToLower(strings.TrimSpace(phase)) {
	case PhasePlan:
		return in.Plan(ctx, input)
	case PhaseTraining:
		return in.Training(ctx, input)
	case PhaseNarration:
		return in.Narration(ctx, input)
	case PhaseBuildScenes:
		return in.Scene(ctx, target, input)
	case PhaseSceneRepair:
		return in.SceneRepair(ctx, target, input)
	case PhaseSceneQC:
		return in.SceneQC(ctx, input)
	default:
		return Result{}, services.Wrap(services.ErrConfiguration, "ingest", "dispatch",
			fmt.Sprintf("unknown phase %q (expected one of %s)", phase, strings.Join(Phases(), ", ")), nil)
	}
}

// Plan validates a scene plan and writes plan.json.
func (in *Ingester) Plan(ctx context.Context, input Input) (Result, error) {
	in.archive(PhasePlan, input)
	result := Result{Phase: PhasePlan, Kind: artifact.KindStructured}

	obj := input.Object
	if obj == nil {
		art, err := artifact.ExtractStructured(input.Text)
		if err != nil {
			err = extractionError(PhasePlan, err)
			in.diagnose(PhasePlan, input, nil, err)
			return result, err
		}
		obj = art.Object
	}

	plan, err := validate.PlanShape(obj)
	if err == nil {
		err = validate.SemanticPlan(plan, in.bounds)
	}
	if err != nil {
		in.diagnose(PhasePlan, input, obj, err)
		return result, err
	}

	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return result, services.Structural(PhasePlan, "plan could not be re-encoded", err)
	}
	path := in.layout.PlanPath()
	if err := in.write(&result, map[string]string{path: string(data) + "\n"}, []string{path}); err != nil {
		return result, err
	}
	logging.WithContext(ctx, in.logger).Info("plan ingested",
		logging.String(logging.FieldEventType, "artifact_ingested"),
		logging.String(logging.FieldPhase, PhasePlan),
		logging.Int("scenes", len(plan.Scenes)),
		logging.Float64("total_seconds", plan.TotalDuration()),
		logging.Bool("dry_run", in.dryRun),
	)
	return result, nil
}

// Training writes the trimmed acknowledgment. The engine decides whether it
// matches the expected token.
func (in *Ingester) Training(ctx context.Context, input Input) (Result, error) {
	in.archive(PhaseTraining, input)
	result := Result{Phase: PhaseTraining}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		err := services.Wrap(services.ErrNotFound, PhaseTraining, "extract", "empty acknowledgment", nil)
		in.diagnose(PhaseTraining, input, nil, err)
		return result, err
	}
	path := in.layout.TrainingAckPath()
	if err := in.write(&result, map[string]string{path: trimAck(text)}, []string{path}); err != nil {
		return result, err
	}
	logging.WithContext(ctx, in.logger).Info("training acknowledgment ingested",
		logging.String(logging.FieldEventType, "artifact_ingested"),
		logging.String(logging.FieldPhase, PhaseTraining),
		logging.Bool("dry_run", in.dryRun),
	)
	return result, nil
}

// Narration validates the narration script and writes narration_script.py.
// Unfenced code is accepted since this phase has no structured channel.
func (in *Ingester) Narration(ctx context.Context, input Input) (Result, error) {
	in.archive(PhaseNarration, input)
	result := Result{Phase: PhaseNarration, Kind: artifact.KindCodeFragment}

	art, err := artifact.ExtractCodeFragment(input.Text, artifact.Options{AllowBareCode: true})
	if err != nil {
		err = extractionError(PhaseNarration, err)
		in.diagnose(PhaseNarration, input, nil, err)
		return result, err
	}
	script, err := validate.Narration(art.Code)
	if err != nil {
		in.diagnose(PhaseNarration, input, art.Code, err)
		return result, err
	}

	logger := logging.WithContext(ctx, in.logger)
	st := in.loadState()
	required := make([]string, 0, len(st.Scenes))
	for _, scene := range st.Scenes {
		required = append(required, scene.NarrationKey)
	}
	if missing := validate.MissingKeys(script, required); len(missing) > 0 {
		logging.WarnWithContext(logger, "narration script is missing scene keys", "narration_keys_missing",
			logging.String(logging.FieldPhase, PhaseNarration),
			logging.String("missing", strings.Join(missing, ", ")),
			logging.String(logging.FieldImpact, "narration phase will not advance until every scene has a key"),
		)
	}

	path := in.layout.NarrationPath()
	code := strings.TrimRight(art.Code, "\n") + "\n"
	if err := in.write(&result, map[string]string{path: code}, []string{path}); err != nil {
		return result, err
	}
	logger.Info("narration ingested",
		logging.String(logging.FieldEventType, "artifact_ingested"),
		logging.String(logging.FieldPhase, PhaseNarration),
		logging.Int("keys", len(script.Keys)),
		logging.Bool("dry_run", in.dryRun),
	)
	return result, nil
}

// Scene merges a body fragment into the project scaffold and writes the
// scene module for target.
func (in *Ingester) Scene(ctx context.Context, target string, input Input) (Result, error) {
	in.archive(PhaseBuildScenes, input)
	result := Result{Phase: PhaseBuildScenes, Kind: artifact.KindCodeFragment}

	scene, err := in.resolveScene(PhaseBuildScenes, target)
	if err != nil {
		return result, err
	}
	art, err := artifact.ExtractCodeFragment(input.Text, artifact.Options{})
	if err != nil {
		err = extractionError(PhaseBuildScenes, err)
		in.diagnose(PhaseBuildScenes, input, nil, err)
		return result, err
	}
	if err := validate.Fragment(PhaseBuildScenes, art.Code, in.rules); err != nil {
		in.diagnose(PhaseBuildScenes, input, art.Code, err)
		return result, err
	}
	merged, err := in.mergeFromScaffold(PhaseBuildScenes, scene, art.Code)
	if err != nil {
		in.diagnose(PhaseBuildScenes, input, art.Code, err)
		return result, err
	}

	path := in.layout.ScenePath(scene.ID)
	if err := in.write(&result, map[string]string{path: merged}, []string{path}); err != nil {
		return result, err
	}
	in.logScene(ctx, PhaseBuildScenes, scene.ID)
	return result, nil
}

// SceneRepair replaces the slot body of an existing scene module. Lines
// outside the slot are preserved.
func (in *Ingester) SceneRepair(ctx context.Context, target string, input Input) (Result, error) {
	in.archive(PhaseSceneRepair, input)
	result := Result{Phase: PhaseSceneRepair, Kind: artifact.KindCodeFragment}

	scene, err := in.resolveScene(PhaseSceneRepair, target)
	if err != nil {
		return result, err
	}
	art, err := artifact.ExtractCodeFragment(input.Text, artifact.Options{})
	if err != nil {
		err = extractionError(PhaseSceneRepair, err)
		in.diagnose(PhaseSceneRepair, input, nil, err)
		return result, err
	}
	if err := validate.Fragment(PhaseSceneRepair, art.Code, in.rules); err != nil {
		in.diagnose(PhaseSceneRepair, input, art.Code, err)
		return result, err
	}
	merged, err := in.mergeExisting(PhaseSceneRepair, scene, art.Code)
	if err != nil {
		in.diagnose(PhaseSceneRepair, input, art.Code, err)
		return result, err
	}

	path := in.layout.ScenePath(scene.ID)
	if err := in.write(&result, map[string]string{path: merged}, []string{path}); err != nil {
		return result, err
	}
	in.logScene(ctx, PhaseSceneRepair, scene.ID)
	return result, nil
}

// SceneQC applies a bundle of per-scene fixes plus a report. Every fragment
// is validated and merged before any file is written.
func (in *Ingester) SceneQC(ctx context.Context, input Input) (Result, error) {
	in.archive(PhaseSceneQC, input)
	result := Result{Phase: PhaseSceneQC, Kind: artifact.KindCodeBundle}

	art, err := artifact.ExtractCodeBundle(input.Text)
	if err != nil {
		err = extractionError(PhaseSceneQC, err)
		in.diagnose(PhaseSceneQC, input, nil, err)
		return result, err
	}
	result.Report = art.Report

	st := in.loadState()
	byID := make(map[string]state.SceneRecord, len(st.Scenes))
	for _, scene := range st.Scenes {
		byID[scene.ID] = scene
	}

	files := make(map[string]string, len(art.Fragments)+1)
	order := make([]string, 0, len(art.Fragments)+1)
	var problems []string
	for i, fragment := range art.Fragments {
		label := fragment.SceneID
		if label == "" {
			problems = append(problems, fmt.Sprintf("fragment %d names no target scene", i+1))
			continue
		}
		scene, ok := byID[fragment.SceneID]
		if !ok {
			problems = append(problems, fmt.Sprintf("fragment %d targets unknown scene %s", i+1, label))
			continue
		}
		if err := validate.Fragment(PhaseSceneQC, fragment.Code, in.rules); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %s", label, messageOf(err)))
			continue
		}
		merged, err := in.mergeExisting(PhaseSceneQC, scene, fragment.Code)
		if err != nil {
			if errors.Is(err, services.ErrConfiguration) {
				in.diagnose(PhaseSceneQC, input, art.Fragments, err)
				return result, err
			}
			problems = append(problems, fmt.Sprintf("%s: %s", label, messageOf(err)))
			continue
		}
		path := in.layout.ScenePath(scene.ID)
		files[path] = merged
		order = append(order, path)
	}
	if len(problems) > 0 {
		err := services.Structural(PhaseSceneQC, fmt.Sprintf("%d of %d fragments rejected: %s",
			len(problems), len(art.Fragments), strings.Join(problems, "; ")), nil)
		in.diagnose(PhaseSceneQC, input, art.Fragments, err)
		return result, err
	}

	sort.Strings(order)
	reportPath := in.layout.QCReportPath()
	files[reportPath] = strings.TrimRight(art.Report, "\n") + "\n"
	order = append(order, reportPath)
	if err := in.write(&result, files, order); err != nil {
		return result, err
	}
	logging.WithContext(ctx, in.logger).Info("scene QC bundle ingested",
		logging.String(logging.FieldEventType, "artifact_ingested"),
		logging.String(logging.FieldPhase, PhaseSceneQC),
		logging.Int("fragments", len(art.Fragments)),
		logging.Bool("dry_run", in.dryRun),
	)
	return result, nil
}

func (in *Ingester) loadState() state.ProjectState {
	return state.NewStore(in.layout.StatePath(), in.now).Load()
}

// resolveScene finds target in the project record, defaulting to the scene
// at the cursor.
func (in *Ingester) resolveScene(phase, target string) (state.SceneRecord, error) {
	st := in.loadState()
	if len(st.Scenes) == 0 {
		return state.SceneRecord{}, services.Retryable(phase, "project has no scenes; ingest and advance a plan first")
	}
	target = strings.TrimSpace(target)
	if target == "" {
		scene, ok := st.CurrentScene()
		if !ok {
			return state.SceneRecord{}, services.Retryable(phase, "every scene is built; name a scene explicitly")
		}
		return scene, nil
	}
	for _, scene := range st.Scenes {
		if scene.ID == target {
			return scene, nil
		}
	}
	return state.SceneRecord{}, services.Wrap(services.ErrNotFound, phase, "resolve scene", fmt.Sprintf("unknown scene %q", target), nil)
}

func (in *Ingester) mergeFromScaffold(phase string, scene state.SceneRecord, body string) (string, error) {
	merged, err := scaffold.Inject(in.layout.ScaffoldPath(), body)
	if err != nil {
		if !errors.Is(err, scaffold.ErrSentinel) && !errors.Is(err, scaffold.ErrEmptyBody) && !errors.Is(err, scaffold.ErrMergedSyntax) {
			return "", services.Wrap(services.ErrConfiguration, phase, "read scaffold", in.layout.Rel(in.layout.ScaffoldPath()), err)
		}
		return "", scaffoldError(phase, err)
	}
	bound, err := scaffold.Bind(merged, sceneBindings(scene))
	if err != nil {
		return "", scaffoldError(phase, err)
	}
	return bound, nil
}

// mergeExisting injects into the scene's current module, falling back to
// the scaffold when the module does not exist yet.
func (in *Ingester) mergeExisting(phase string, scene state.SceneRecord, body string) (string, error) {
	data, err := os.ReadFile(in.layout.ScenePath(scene.ID))
	if errors.Is(err, os.ErrNotExist) {
		return in.mergeFromScaffold(phase, scene, body)
	}
	if err != nil {
		return "", services.Wrap(services.ErrTransient, phase, "read scene", in.layout.Rel(in.layout.ScenePath(scene.ID)), err)
	}
	merged, err := scaffold.InjectSource(string(data), body)
	if err != nil {
		return "", scaffoldError(phase, err)
	}
	bound, err := scaffold.Bind(merged, sceneBindings(scene))
	if err != nil {
		return "", scaffoldError(phase, err)
	}
	return bound, nil
}

func sceneBindings(scene state.SceneRecord) map[string]string {
	return map[string]string{
		"class_name":    textutil.ClassName(scene.ID),
		"narration_key": scene.NarrationKey,
	}
}

func (in *Ingester) logScene(ctx context.Context, phase, sceneID string) {
	logging.WithContext(ctx, in.logger).Info("scene fragment ingested",
		logging.String(logging.FieldEventType, "artifact_ingested"),
		logging.String(logging.FieldPhase, phase),
		logging.String(logging.FieldSceneID, sceneID),
		logging.Bool("dry_run", in.dryRun),
	)
}

func messageOf(err error) string {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return err.Error()
}
