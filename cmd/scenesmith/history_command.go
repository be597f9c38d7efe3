package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scenesmith/internal/ledger"
)

type historyEntry struct {
	ID         int64  `json:"id"`
	RecordedAt string `json:"recorded_at"`
	RequestID  string `json:"request_id,omitempty"`
	Command    string `json:"command"`
	Requested  string `json:"requested_phase,omitempty"`
	From       string `json:"from_phase"`
	To         string `json:"to_phase"`
	SceneIndex int    `json:"scene_index"`
	RunCount   int    `json:"run_count"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Message    string `json:"message,omitempty"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var all bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded advance and ingest attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ledger.Open(cfg.Paths.LedgerPath)
			if err != nil {
				return err
			}
			defer store.Close()

			projectDir := ctx.layout().Root
			if all {
				projectDir = ""
			}
			entries, err := store.List(cmd.Context(), projectDir, limit)
			if err != nil {
				return err
			}

			if jsonOut {
				view := make([]historyEntry, 0, len(entries))
				for _, e := range entries {
					view = append(view, toHistoryEntry(e))
				}
				return writeJSON(cmd, view)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No attempts recorded")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			failures := 0
			for _, e := range entries {
				outcome := "ok"
				if e.Failed() {
					failures++
					outcome = e.ErrorKind + ": " + truncate(e.Message, 60)
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", e.ID),
					e.RecordedAt.Local().Format("2006-01-02 15:04:05"),
					e.Command,
					e.RequestedPhase,
					e.FromPhase + " -> " + e.ToPhase,
					fmt.Sprintf("%d", e.SceneIndex),
					outcome,
				})
			}
			fmt.Fprintln(out, renderTable(tableSpec{
				Headers: []string{"ID", "When", "Command", "Requested", "Transition", "Cursor", "Outcome"},
				Rows:    rows,
				Aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				Footer:  fmt.Sprintf("%d attempts, %d failed", len(entries), failures),
			}))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	cmd.Flags().BoolVar(&all, "all", false, "Include every project in the ledger")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit entries as JSON")
	return cmd
}

func toHistoryEntry(e ledger.Entry) historyEntry {
	return historyEntry{
		ID:         e.ID,
		RecordedAt: e.RecordedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		RequestID:  e.RequestID,
		Command:    e.Command,
		Requested:  e.RequestedPhase,
		From:       e.FromPhase,
		To:         e.ToPhase,
		SceneIndex: e.SceneIndex,
		RunCount:   e.RunCount,
		ErrorKind:  e.ErrorKind,
		Message:    e.Message,
	}
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}
