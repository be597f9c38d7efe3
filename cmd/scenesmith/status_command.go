package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scenesmith/internal/ledger"
	"scenesmith/internal/project"
	"scenesmith/internal/services"
	"scenesmith/internal/state"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the project record",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := ctx.layout()
			store := state.NewStore(layout.StatePath(), time.Now)
			if !store.Exists() {
				return services.Wrap(services.ErrConfiguration, "project", "status",
					fmt.Sprintf("%s has no %s; run scenesmith init first", layout.Root, project.StateFile), project.ErrMissingProject)
			}
			st := store.Load()
			if jsonOut {
				return writeJSON(cmd, st)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, strings.Join(projectLines(st, colorize), "\n"))

			if len(st.Scenes) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(tableSpec{
					Title:   "Scenes",
					Headers: []string{"", "#", "ID", "Title", "Duration", "Status", "Class"},
					Rows:    sceneRows(st),
					Aligns:  []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight},
				}))
			}

			if stats, ok := ledgerStats(cmd.Context(), ctx, layout); ok {
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderStatusLine("Attempts", statusInfo, fmt.Sprintf("%d recorded, %d failed", stats.Attempts, stats.Failures), colorize))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the project record as JSON")
	return cmd
}

// ledgerStats reads attempt counts without taking the project lock.
func ledgerStats(c context.Context, ctx *commandContext, layout project.Layout) (ledger.Stats, bool) {
	cfg := ctx.configValue()
	if cfg == nil {
		return ledger.Stats{}, false
	}
	store, err := ledger.Open(cfg.Paths.LedgerPath)
	if err != nil {
		return ledger.Stats{}, false
	}
	defer store.Close()
	stats, err := store.Stats(c, layout.Root)
	if err != nil {
		return ledger.Stats{}, false
	}
	return stats, true
}
