package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"scenesmith/internal/logging"
	"scenesmith/internal/project"
	"scenesmith/internal/services"
	"scenesmith/internal/state"
	"scenesmith/internal/validate"
)

// DefaultAckToken is the acknowledgment the training phase waits for.
const DefaultAckToken = "understood"

// Options configures an Engine.
type Options struct {
	Bounds   validate.PlanBounds
	AckToken string
	Now      func() time.Time
	Logger   *slog.Logger
}

// Engine applies phase transitions against one project layout.
type Engine struct {
	layout   project.Layout
	bounds   validate.PlanBounds
	ackToken string
	now      func() time.Time
	logger   *slog.Logger
}

// New constructs an Engine. Zero-valued options take defaults.
func New(layout project.Layout, opts Options) *Engine {
	e := &Engine{
		layout:   layout,
		bounds:   opts.Bounds,
		ackToken: normalizeAck(opts.AckToken),
		now:      opts.Now,
		logger:   opts.Logger,
	}
	if e.bounds == (validate.PlanBounds{}) {
		e.bounds = validate.DefaultPlanBounds()
	}
	if e.ackToken == "" {
		e.ackToken = DefaultAckToken
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	e.logger = logging.NewComponentLogger(e.logger, "engine")
	return e
}

// Outcome describes what a single Apply call did.
type Outcome struct {
	Requested  state.Phase
	From       state.Phase
	To         state.Phase
	SceneIndex int
	// Err is the artifact failure recorded by this call, if any.
	Err error
	// NewError reports whether Err was not already recorded.
	NewError bool
	// Satisfied reports that the requested phase was already behind the
	// project, so nothing was evaluated.
	Satisfied bool
}

// Advanced reports whether the phase changed.
func (o Outcome) Advanced() bool {
	return o.From != o.To
}

// Apply evaluates the transition out of the project's current phase. An
// empty requested phase means "whatever phase the project is at".
//
// Requesting a phase the project has already left is a no-op, which makes
// repeated calls with unchanged evidence converge on the same record.
// Requesting a phase the project has not reached records a retryable error.
func (e *Engine) Apply(ctx context.Context, in state.ProjectState, requested state.Phase) (state.ProjectState, Outcome) {
	st := in.Clone()
	now := e.now().UTC()
	st.RunCount++
	st.UpdatedAt = now

	if requested == "" {
		requested = st.Phase
	}
	out := Outcome{Requested: requested, From: st.Phase}
	startCursor := st.CurrentSceneIndex

	logger := logging.WithContext(ctx, e.logger).With(logging.String(logging.FieldPhase, string(st.Phase)))
	if _, ok := services.ProjectFromContext(ctx); !ok {
		logger = logger.With(logging.String(logging.FieldProject, st.ProjectName))
	}
	if st.Flags.DryRun {
		logger = logger.With(logging.Bool("dry_run", true))
	}

	var err error
	switch {
	case requested == state.PhasePlan && st.Flags.ForceReplan && st.Phase != state.PhasePlan:
		logger.Info("forced re-plan", logging.DecisionAttrs("phase_request", "replan", "force_replan flag set")...)
		st.Phase = state.PhasePlan
		err = e.step(&st)
	case requested == st.Phase:
		err = e.step(&st)
	case phaseIndex(requested) < phaseIndex(st.Phase):
		out.Satisfied = true
		logger.Debug("requested phase already passed",
			logging.DecisionAttrs("phase_request", "satisfied", "project is at "+string(st.Phase))...)
	default:
		err = services.Retryable(string(requested), fmt.Sprintf("phase mismatch: project is at %s, requested %s", st.Phase, requested))
	}

	out.To = st.Phase
	out.SceneIndex = st.CurrentSceneIndex
	if err != nil {
		out.Err = err
		out.NewError = st.AddError(err.Error())
	}

	if out.Advanced() || st.CurrentSceneIndex != startCursor || out.NewError {
		st.History = append(st.History, state.HistoryEvent{
			Timestamp:  now,
			Run:        st.RunCount,
			RequestID:  requestID(ctx),
			From:       out.From,
			To:         out.To,
			SceneIndex: st.CurrentSceneIndex,
			Note:       historyNote(out, startCursor, st.Flags.DryRun),
		})
	}

	switch {
	case err != nil:
		logging.WarnWithContext(logger, "phase requirements not met", "phase_blocked",
			logging.String("requested_phase", string(requested)),
			logging.String("error_kind", services.Kind(err)),
			logging.Bool("new_error", out.NewError),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "produce the missing artifact and run advance again"),
			logging.String(logging.FieldImpact, "phase left unchanged"),
		)
	case out.Advanced():
		logger.Info("phase advanced",
			logging.String(logging.FieldEventType, "phase_advanced"),
			logging.String("to_phase", string(out.To)),
		)
	case st.CurrentSceneIndex != startCursor:
		logger.Info("scene built",
			logging.String(logging.FieldEventType, "scene_built"),
			logging.Int("scene_index", st.CurrentSceneIndex),
			logging.Int("scene_total", len(st.Scenes)),
		)
	default:
		logger.Debug("no transition", logging.Bool("satisfied", out.Satisfied))
	}
	return st, out
}

func (e *Engine) step(st *state.ProjectState) error {
	switch st.Phase {
	case state.PhaseInit:
		st.Phase = state.PhasePlan
		return nil
	case state.PhasePlan:
		return e.applyPlan(st)
	case state.PhaseReview:
		st.Phase = state.PhaseTraining
		return nil
	case state.PhaseTraining:
		return e.applyTraining(st)
	case state.PhaseNarration:
		return e.applyNarration(st)
	case state.PhaseBuildScenes:
		return e.applyBuildScenes(st)
	case state.PhasePrecacheVoiceovers:
		return e.applyPrecache(st)
	case state.PhaseFinalRender:
		return e.applyFinalRender(st)
	case state.PhaseAssemble:
		return e.applyAssemble(st)
	default:
		return nil
	}
}

// halt moves the project to the terminal error phase; only a forced re-plan
// leaves it.
func halt(st *state.ProjectState, phase state.Phase, message string) error {
	st.Phase = state.PhaseError
	st.Flags.NeedsHumanReview = true
	return services.NewValidationError(string(phase), services.KindStructural, message)
}

func phaseIndex(p state.Phase) int {
	return slices.Index(state.AllPhases(), p)
}

func requestID(ctx context.Context) string {
	if id, ok := services.RequestIDFromContext(ctx); ok {
		return id
	}
	return uuid.NewString()
}

func historyNote(out Outcome, startCursor int, dryRun bool) string {
	var note string
	switch {
	case out.Err != nil:
		note = out.Err.Error()
	case out.Advanced():
		note = fmt.Sprintf("advanced %s -> %s", out.From, out.To)
	case out.SceneIndex != startCursor:
		note = fmt.Sprintf("scene %d built", out.SceneIndex)
	}
	if dryRun {
		note = strings.TrimSpace(note + " (dry run)")
	}
	return note
}
