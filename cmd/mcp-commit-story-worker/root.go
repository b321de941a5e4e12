package main

import (
	"github.com/spf13/cobra"

	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcp-commit-story-worker",
		Short: "Background worker that turns one git commit into a journal entry",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Initialize()
		},
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newInstallHookCmd())
	root.AddCommand(newStatusCmd())

	return root
}
