package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"scenesmith/internal/artifact"
	"scenesmith/internal/fileutil"
	"scenesmith/internal/logging"
	"scenesmith/internal/project"
	"scenesmith/internal/scaffold"
	"scenesmith/internal/services"
	"scenesmith/internal/textutil"
	"scenesmith/internal/validate"
)

// Phases accepted by the ingester. SceneQC and SceneRepair are side phases
// of build_scenes and never appear in the project record.
const (
	PhasePlan        = "plan"
	PhaseTraining    = "training"
	PhaseNarration   = "narration"
	PhaseBuildScenes = "build_scenes"
	PhaseSceneQC     = "scene_qc"
	PhaseSceneRepair = "scene_repair"
)

// Phases lists every phase Ingest understands.
func Phases() []string {
	return []string{PhasePlan, PhaseTraining, PhaseNarration, PhaseBuildScenes, PhaseSceneQC, PhaseSceneRepair}
}

// Input is a collaborator response. Object is set when the response came
// through a schema-enforced channel and takes precedence over Text for
// structured phases.
type Input struct {
	Text      string
	Object    map[string]any
	Transport string
}

// Options configures an Ingester.
type Options struct {
	Rules  validate.FragmentRules
	Bounds validate.PlanBounds
	DryRun bool
	Now    func() time.Time
	Logger *slog.Logger
}

// Ingester writes validated artifacts into one project.
type Ingester struct {
	layout project.Layout
	rules  validate.FragmentRules
	bounds validate.PlanBounds
	dryRun bool
	now    func() time.Time
	logger *slog.Logger
}

// New constructs an Ingester. Zero-valued options take defaults.
func New(layout project.Layout, opts Options) *Ingester {
	in := &Ingester{
		layout: layout,
		rules:  opts.Rules,
		bounds: opts.Bounds,
		dryRun: opts.DryRun,
		now:    opts.Now,
		logger: opts.Logger,
	}
	if in.rules.FillerPhrases == nil && in.rules.Placeholders == nil {
		in.rules = validate.DefaultFragmentRules()
	}
	if in.bounds == (validate.PlanBounds{}) {
		in.bounds = validate.DefaultPlanBounds()
	}
	if in.now == nil {
		in.now = time.Now
	}
	if in.logger == nil {
		in.logger = logging.NewNop()
	}
	in.logger = logging.NewComponentLogger(in.logger, "ingest")
	return in
}

// Result describes a successful ingestion.
type Result struct {
	Phase string
	Kind  artifact.Kind
	// Written lists project-relative paths of the artifacts written, or that
	// would have been written in dry-run mode.
	Written []string
	Report  string
	DryRun  bool
}

// archive stores the raw response under logs/responses. Failures are
// logged, never returned.
func (in *Ingester) archive(phase string, input Input) {
	if in.dryRun {
		return
	}
	text := input.Text
	if text == "" && input.Object != nil {
		if data, err := json.MarshalIndent(input.Object, "", "  "); err == nil {
			text = string(data)
		}
	}
	now := in.now().UTC()
	base := fmt.Sprintf("%s_%s", now.Format("20060102T150405.000Z"), textutil.SanitizeToken(phase))
	path := filepath.Join(in.layout.ResponsesDir(), base+".txt")
	for n := 2; fileutil.Exists(path); n++ {
		path = filepath.Join(in.layout.ResponsesDir(), fmt.Sprintf("%s_%d.txt", base, n))
	}
	if err := fileutil.WriteFileAtomic(path, []byte(text), 0o644); err != nil {
		logging.WarnWithContext(in.logger, "raw response not archived", "response_archive_failed",
			logging.String(logging.FieldPhase, phase),
			logging.Error(err),
			logging.String(logging.FieldImpact, "response is not available for later inspection"),
		)
	}
}

// diagnose records a best-effort diagnostic for a rejected response.
func (in *Ingester) diagnose(phase string, input Input, extracted any, err error) {
	if in.dryRun {
		return
	}
	d := validate.NewDiagnostic(in.now(), phase, input.Text, extracted, err)
	path, writeErr := validate.WriteDiagnostic(in.layout.DiagnosticsDir(), d)
	if writeErr != nil {
		logging.WarnWithContext(in.logger, "diagnostic not written", "diagnostic_write_failed",
			logging.String(logging.FieldPhase, phase),
			logging.Error(writeErr),
			logging.String(logging.FieldImpact, "validation failure is only visible in this log"),
		)
		return
	}
	in.logger.Info("diagnostic written",
		logging.String(logging.FieldEventType, "diagnostic_written"),
		logging.String(logging.FieldPhase, phase),
		logging.String("path", in.layout.Rel(path)),
	)
}

// write commits files atomically, or only records them in dry-run mode.
func (in *Ingester) write(result *Result, files map[string]string, order []string) error {
	result.DryRun = in.dryRun
	for _, path := range order {
		if !in.dryRun {
			if err := fileutil.WriteFileAtomic(path, []byte(files[path]), 0o644); err != nil {
				return services.Wrap(services.ErrTransient, result.Phase, "write artifact", in.layout.Rel(path), err)
			}
		}
		result.Written = append(result.Written, in.layout.Rel(path))
	}
	return nil
}

// extractionError classifies an extractor failure.
func extractionError(phase string, err error) error {
	switch {
	case errors.Is(err, artifact.ErrNotFound):
		return services.Wrap(services.ErrNotFound, phase, "extract", "no artifact in response", err)
	default:
		return services.Structural(phase, "artifact extraction failed", err)
	}
}

// scaffoldError classifies an injection failure. A broken scaffold is the
// project's fault, not the collaborator's.
func scaffoldError(phase string, err error) error {
	switch {
	case errors.Is(err, scaffold.ErrSentinel):
		return services.Wrap(services.ErrConfiguration, phase, "inject", "scaffold sentinel contract broken", err)
	case errors.Is(err, scaffold.ErrEmptyBody), errors.Is(err, scaffold.ErrMergedSyntax), errors.Is(err, scaffold.ErrUnbound):
		return services.Structural(phase, "scaffold injection failed", err)
	default:
		return services.Wrap(services.ErrTransient, phase, "inject", "scaffold injection failed", err)
	}
}

func trimAck(text string) string {
	return strings.TrimSpace(text) + "\n"
}
