package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"scenesmith/internal/ingest"
	"scenesmith/internal/logging"
	"scenesmith/internal/prompts"
	"scenesmith/internal/services"
	"scenesmith/internal/services/llm"
	"scenesmith/internal/state"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var phase string
	var sceneID string
	var sceneFile string
	var problem string
	var dryRun bool
	var noAdvance bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Ask the configured LLM for a phase artifact, then ingest and advance",
		Long: `Build the prompt for --phase from the project record, send it to the
configured collaborator, and ingest the response exactly as "scenesmith ingest"
would. Successful plan, narration and build_scenes responses are followed by
an advance unless --no-advance is set.

Phases: plan, narration, build_scenes, scene_repair`,
		RunE: func(cmd *cobra.Command, args []string) error {
			phase = strings.ToLower(strings.TrimSpace(phase))
			if phase == "" {
				return usageError("--phase is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateLLM(); err != nil {
				return services.Wrap(services.ErrConfiguration, phase, "generate", "collaborator not configured", err)
			}
			target := strings.TrimSpace(sceneID)
			if target == "" && strings.TrimSpace(sceneFile) != "" {
				target = sceneIDFromFile(sceneFile)
			}

			s, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			st := s.store.Load()
			input := prompts.Input{State: st, Bounds: ctx.planBounds(), Problem: problem}
			if phase == ingest.PhaseBuildScenes || phase == ingest.PhaseSceneRepair {
				scene, err := pickScene(st, target)
				if err != nil {
					return err
				}
				input.Scene = scene
				target = scene.ID
				if phase == ingest.PhaseSceneRepair {
					data, err := os.ReadFile(s.layout.ScenePath(scene.ID))
					if err != nil {
						return services.Wrap(services.ErrRetryableArtifact, phase, "read scene", s.layout.Rel(s.layout.ScenePath(scene.ID)), err)
					}
					input.SceneSource = string(data)
				}
			}
			req, err := prompts.Build(phase, input)
			if err != nil {
				if errors.Is(err, prompts.ErrUnsupportedPhase) {
					return usageError("%v", err)
				}
				return services.Wrap(services.ErrRetryableArtifact, phase, "prompt", "", err)
			}

			llmCfg := cfg.GetLLM()
			client := llm.NewClient(llm.Config{
				APIKey:         llmCfg.APIKey,
				BaseURL:        llmCfg.BaseURL,
				Model:          llmCfg.Model,
				Referer:        llmCfg.Referer,
				Title:          llmCfg.Title,
				TimeoutSeconds: llmCfg.TimeoutSeconds,
				MaxRetries:     llmCfg.MaxRetries,
			})
			logger := logging.WithContext(s.ctx, s.logger)
			logger.Info("requesting artifact",
				logging.String(logging.FieldEventType, "collaborator_request"),
				logging.String(logging.FieldPhase, phase),
				logging.String("model", llmCfg.Model),
				logging.Bool("json", req.JSON),
			)

			var resp llm.Response
			if req.JSON {
				resp, err = client.CompleteJSON(s.ctx, req.System, req.User)
			} else {
				resp, err = client.Complete(s.ctx, req.System, req.User)
			}
			if err != nil {
				return services.Wrap(services.ErrTransient, phase, "collaborator", "request failed", err)
			}

			report, err := runIngest(ctx, s, phase, target, ingest.Input{
				Text:      resp.Text,
				Object:    resp.Object,
				Transport: resp.Transport,
			}, dryRun, !noAdvance)
			if report.Phase != "" {
				if jsonOut {
					if werr := writeJSON(cmd, report); werr != nil {
						return werr
					}
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Collaborator %s answered via %s\n", resp.Model, resp.Transport)
					printIngest(cmd.OutOrStdout(), report)
				}
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&phase, "phase", "p", "", "Phase to generate")
	cmd.Flags().StringVar(&sceneID, "scene", "", "Target scene id (defaults to the current scene)")
	cmd.Flags().StringVar(&sceneFile, "scene-file", "", "Target scene module path, as an alternative to --scene")
	cmd.Flags().StringVar(&problem, "problem", "", "What scene_repair should fix")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the response without writing anything")
	cmd.Flags().BoolVar(&noAdvance, "no-advance", false, "Do not run advance after a successful ingest")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the outcome as JSON")
	return cmd
}

// pickScene returns target, or the scene at the cursor when target is empty.
func pickScene(st state.ProjectState, target string) (state.SceneRecord, error) {
	if target == "" {
		scene, ok := st.CurrentScene()
		if !ok {
			return state.SceneRecord{}, services.Retryable("build_scenes", "no scene is waiting to be built; pass --scene")
		}
		return scene, nil
	}
	for _, scene := range st.Scenes {
		if scene.ID == target {
			return scene, nil
		}
	}
	return state.SceneRecord{}, services.Wrap(services.ErrNotFound, "build_scenes", "resolve scene", fmt.Sprintf("unknown scene %q", target), nil)
}
