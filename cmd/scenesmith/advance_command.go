package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"scenesmith/internal/engine"
	"scenesmith/internal/state"
)

type advanceReport struct {
	RequestID  string   `json:"request_id"`
	Requested  string   `json:"requested_phase"`
	From       string   `json:"from_phase"`
	To         string   `json:"to_phase"`
	SceneIndex int      `json:"current_scene_index"`
	Scenes     int      `json:"scene_count"`
	Advanced   bool     `json:"advanced"`
	Satisfied  bool     `json:"satisfied"`
	DryRun     bool     `json:"dry_run"`
	ErrorKind  string   `json:"error_kind,omitempty"`
	Error      string   `json:"error,omitempty"`
	Errors     []string `json:"errors"`
}

func newAdvanceCommand(ctx *commandContext) *cobra.Command {
	var phaseFlag string
	var dryRun bool
	var forceReplan bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Evaluate the current phase's evidence and move the project forward",
		Long: `Evaluate the evidence for the project's current phase (or --phase) and
record the outcome in project_state.json. Exit status is 0 on success, 1 when
evidence is missing, 2 when an artifact is malformed and 3 when a plan breaks a
business rule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var requested state.Phase
			if strings.TrimSpace(phaseFlag) != "" {
				p, ok := state.ParsePhase(phaseFlag)
				if !ok {
					return usageError("unknown phase %q", phaseFlag)
				}
				requested = p
			}

			s, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			before := s.store.Load()
			input := before.Clone()
			input.Flags.DryRun = dryRun
			if forceReplan {
				input.Flags.ForceReplan = true
				if requested == "" {
					requested = state.PhasePlan
				}
			}

			after, outcome := advance(ctx, s, input, requested)
			if !dryRun {
				if err := s.store.Save(&after); err != nil {
					return err
				}
				s.record(string(outcome.Requested), before, after, outcome.Err)
			}

			report := newAdvanceReport(s.requestID, after, outcome, after.Flags.DryRun)
			if jsonOut {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printAdvance(cmd.OutOrStdout(), report)
			}
			return outcome.Err
		},
	}

	cmd.Flags().StringVarP(&phaseFlag, "phase", "p", "", "Phase to evaluate (defaults to the current phase)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Evaluate without saving the project record")
	cmd.Flags().BoolVar(&forceReplan, "force-replan", false, "Return to the plan phase and re-evaluate plan.json")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the outcome as JSON")
	return cmd
}

// advance runs one engine transition for the session's project.
func advance(ctx *commandContext, s *session, in state.ProjectState, requested state.Phase) (state.ProjectState, engine.Outcome) {
	cfg := ctx.configValue()
	ack := ""
	if cfg != nil {
		ack = cfg.Engine.AckToken
	}
	eng := engine.New(s.layout, engine.Options{
		Bounds:   ctx.planBounds(),
		AckToken: ack,
		Logger:   s.logger,
	})
	return eng.Apply(s.ctx, in, requested)
}

func newAdvanceReport(requestID string, st state.ProjectState, outcome engine.Outcome, dryRun bool) advanceReport {
	report := advanceReport{
		RequestID:  requestID,
		Requested:  string(outcome.Requested),
		From:       string(outcome.From),
		To:         string(outcome.To),
		SceneIndex: outcome.SceneIndex,
		Scenes:     len(st.Scenes),
		Advanced:   outcome.Advanced(),
		Satisfied:  outcome.Satisfied,
		DryRun:     dryRun,
		Errors:     st.Errors,
	}
	if outcome.Err != nil {
		report.ErrorKind = kindOf(outcome.Err)
		report.Error = outcome.Err.Error()
	}
	return report
}

func printAdvance(out io.Writer, r advanceReport) {
	switch {
	case r.Error != "":
		fmt.Fprintf(out, "Phase %s blocked (%s): %s\n", r.From, r.ErrorKind, r.Error)
	case r.Satisfied:
		fmt.Fprintf(out, "Phase %s already complete; project is at %s\n", r.Requested, r.To)
	case r.Advanced:
		fmt.Fprintf(out, "Advanced %s -> %s\n", r.From, r.To)
	case r.Scenes > 0 && r.From == string(state.PhaseBuildScenes):
		fmt.Fprintf(out, "Scene %d of %d built; phase %s\n", r.SceneIndex, r.Scenes, r.To)
	default:
		fmt.Fprintf(out, "Phase %s unchanged\n", r.To)
	}
	if r.DryRun {
		fmt.Fprintln(out, "Dry run: project record not saved")
	}
}
