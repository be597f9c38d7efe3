package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"scenesmith/internal/logs"
	"scenesmith/internal/state"
)

const followInterval = 500 * time.Millisecond

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var all bool
	var requestID string
	var phase string
	var level string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the tool log for this project",
		Long: `Print recent records from the JSON log file under paths.log_dir.
Records are limited to the current project unless --all is set; use
--request to follow a single invocation (the request id shown by
"scenesmith history").`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogFilePath()
			if path == "" {
				return usageError("paths.log_dir is not configured")
			}

			filter := logs.Filter{RequestID: requestID, Phase: phase, MinLevel: level}
			if !all {
				layout := ctx.layout()
				store := state.NewStore(layout.StatePath(), time.Now)
				if store.Exists() {
					filter.Project = store.Load().ProjectName
				}
			}

			out := cmd.OutOrStdout()
			recent, cursor, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			printRecords(out, recent, filter)
			if follow {
				return logs.Follow(cmd.Context(), path, cursor, followInterval, func(batch []string) {
					printRecords(out, batch, filter)
				})
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing log lines to read")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new records")
	cmd.Flags().BoolVar(&all, "all", false, "Include records from every project")
	cmd.Flags().StringVar(&requestID, "request", "", "Only records for this request id (prefix match)")
	cmd.Flags().StringVar(&phase, "phase", "", "Only records for this phase")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	return cmd
}

func printRecords(out io.Writer, lines []string, filter logs.Filter) {
	for _, rec := range logs.Records(lines, filter) {
		fmt.Fprintln(out, logs.Format(rec))
	}
}
