package main

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/config"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/githook"
)

func newInstallHookCmd() *cobra.Command {
	var background bool
	var timeoutSeconds int

	cmd := &cobra.Command{
		Use:   "install-hook",
		Short: "Install the post-commit git hook that spawns this worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			repoPath, err := discoverRepoRoot()
			if err != nil {
				return err
			}
			if err := config.WriteDefaultConfigFile(repoPath); err != nil {
				return fmt.Errorf("scaffolding config.toml: %w", err)
			}
			return githook.Install(repoPath, githook.InstallOptions{
				WorkerBinary: "mcp-commit-story-worker run",
				Background:   background,
				Timeout:      time.Duration(timeoutSeconds) * time.Second,
			})
		},
	}

	cmd.Flags().BoolVar(&background, "background", true, "detach the worker from git's process tree")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 30, "wall-clock timeout passed to each worker invocation")

	return cmd
}

func discoverRepoRoot() (string, error) {
	out, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", fmt.Errorf("not inside a git repository: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
