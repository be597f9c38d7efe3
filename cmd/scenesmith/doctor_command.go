package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scenesmith/internal/preflight"
	"scenesmith/internal/services"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var ping bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the project directory, ledger, tools and collaborator settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, ctx.layout(), preflight.Options{CheckLLM: ping})

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Doctor", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, r := range results {
				kind := statusOK
				switch {
				case !r.Passed && r.Optional:
					kind = statusWarn
				case !r.Passed:
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if preflight.Failed(results) {
				return services.Wrap(services.ErrConfiguration, "doctor", "preflight", "one or more required checks failed", nil)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&ping, "ping", false, "Send one request to the collaborator endpoint")
	return cmd
}
