package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scenesmith/internal/project"
)

func newInitCommand(ctx *commandContext) *cobra.Command {
	var topic string
	var name string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a project directory with a fresh state record and scaffold",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(topic) == "" {
				return usageError("--topic is required")
			}
			layout := ctx.layout()
			st, written, err := project.Init(layout, project.InitOptions{
				Name:  name,
				Topic: strings.TrimSpace(topic),
				Now:   time.Now(),
				Force: force,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !written {
				fmt.Fprintf(out, "Project %s already initialized at %s (phase %s); use --force to start over\n", st.ProjectName, layout.Root, st.Phase)
				return nil
			}
			fmt.Fprintf(out, "Initialized project %s at %s\n", st.ProjectName, layout.Root)
			fmt.Fprintf(out, "Topic: %s\n", st.Topic)
			fmt.Fprintf(out, "Scaffold: %s\n", layout.Rel(layout.ScaffoldPath()))
			fmt.Fprintln(out, "Next: scenesmith advance")
			return nil
		},
	}

	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Video topic")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Project name (defaults to the directory name)")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing state record")
	return cmd
}
