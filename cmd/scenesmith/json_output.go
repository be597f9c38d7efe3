package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"scenesmith/internal/services"
)

// writeJSON prints v for scripts driving the CLI. HTML escaping is off so
// collaborator text and scene code round-trip unchanged.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return services.Wrap(services.ErrTransient, "cli", "encode json", "", err)
	}
	return nil
}
