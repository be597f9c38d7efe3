package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scenesmith/internal/ingest"
	"scenesmith/internal/services"
	"scenesmith/internal/state"
)

type ingestReport struct {
	RequestID string         `json:"request_id"`
	Phase     string         `json:"phase"`
	Written   []string       `json:"written"`
	DryRun    bool           `json:"dry_run"`
	Report    string         `json:"report,omitempty"`
	Advance   *advanceReport `json:"advance,omitempty"`
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var phase string
	var responseFile string
	var sceneID string
	var sceneFile string
	var dryRun bool
	var advanceAfter bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Validate a collaborator response and write the artifact it carries",
		Long: `Read a collaborator response from --response-file (or stdin), extract the
artifact for --phase, validate it, and write it into the project. Nothing is
written when validation fails; a diagnostic is stored under logs/diagnostics.

Phases: ` + strings.Join(ingest.Phases(), ", "),
		RunE: func(cmd *cobra.Command, args []string) error {
			phase = strings.ToLower(strings.TrimSpace(phase))
			if phase == "" {
				return usageError("--phase is required")
			}
			target := strings.TrimSpace(sceneID)
			if target == "" && strings.TrimSpace(sceneFile) != "" {
				target = sceneIDFromFile(sceneFile)
			}
			text, err := readResponse(responseFile, cmd.InOrStdin())
			if err != nil {
				return err
			}

			s, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := runIngest(ctx, s, phase, target, ingest.Input{Text: text, Transport: "manual"}, dryRun, advanceAfter)
			if report.Phase != "" {
				if jsonOut {
					if werr := writeJSON(cmd, report); werr != nil {
						return werr
					}
				} else {
					printIngest(cmd.OutOrStdout(), report)
				}
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&phase, "phase", "p", "", "Phase the response answers")
	cmd.Flags().StringVarP(&responseFile, "response-file", "f", "-", "Response file, or - for stdin")
	cmd.Flags().StringVar(&sceneID, "scene", "", "Target scene id for build_scenes or scene_repair (defaults to the current scene)")
	cmd.Flags().StringVar(&sceneFile, "scene-file", "", "Target scene module path, as an alternative to --scene")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate without writing anything")
	cmd.Flags().BoolVar(&advanceAfter, "advance", false, "Run advance for the phase after a successful ingest")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the outcome as JSON")
	return cmd
}

// runIngest validates and writes one response, records the attempt, and
// optionally advances the engine.
func runIngest(ctx *commandContext, s *session, phase, target string, input ingest.Input, dryRun, advanceAfter bool) (ingestReport, error) {
	rules, err := ctx.fragmentRules()
	if err != nil {
		return ingestReport{}, err
	}
	in := ingest.New(s.layout, ingest.Options{
		Rules:  rules,
		Bounds: ctx.planBounds(),
		DryRun: dryRun,
		Now:    time.Now,
		Logger: s.logger,
	})

	before := s.store.Load()
	result, err := in.Ingest(services.WithPhase(s.ctx, phase), phase, target, input)
	if !dryRun {
		s.record("ingest:"+phase, before, before, err)
	}
	if err != nil {
		return ingestReport{}, err
	}

	report := ingestReport{
		RequestID: s.requestID,
		Phase:     result.Phase,
		Written:   result.Written,
		DryRun:    result.DryRun,
		Report:    result.Report,
	}
	enginePhase, ok := engineReady(result.Phase)
	if !advanceAfter || dryRun || !ok {
		return report, nil
	}

	requested, _ := state.ParsePhase(enginePhase)
	next := before.Clone()
	next.Flags.DryRun = false
	after, outcome := advance(ctx, s, next, requested)
	if err := s.store.Save(&after); err != nil {
		return report, err
	}
	s.record(string(outcome.Requested), before, after, outcome.Err)
	adv := newAdvanceReport(s.requestID, after, outcome, false)
	report.Advance = &adv
	return report, outcome.Err
}

func printIngest(out io.Writer, r ingestReport) {
	verb := "Wrote"
	if r.DryRun {
		verb = "Would write"
	}
	for _, path := range r.Written {
		fmt.Fprintf(out, "%s %s\n", verb, path)
	}
	if r.Report != "" {
		fmt.Fprintf(out, "QC report:\n%s\n", r.Report)
	}
	if r.Advance != nil {
		printAdvance(out, *r.Advance)
	}
}
