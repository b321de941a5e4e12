package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/aggregator"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/config"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/dailytrigger"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/lifecycle"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/orchestrator"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/signalstore"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/telemetry"
)

// unconfiguredLMClient is the stand-in used until a real language-model
// client is wired in by the MCP server wrapper; every generator falls back
// to its typed empty default when invocation fails, so the journal entry
// still assembles successfully.
type unconfiguredLMClient struct{}

func (unconfiguredLMClient) Invoke(ctx context.Context, prompt string) (string, error) {
	return "", fmt.Errorf("no language model client configured for this worker invocation")
}

var breaker = lifecycle.NewCircuitBreaker(lifecycle.DefaultFailureThreshold)

func newRunCmd() *cobra.Command {
	var commitHash string
	var repoPath string
	var timeoutSeconds int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate a journal entry for one commit (invoked by the post-commit hook)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), commitHash, repoPath, time.Duration(timeoutSeconds)*time.Second)
		},
	}

	cmd.Flags().StringVar(&commitHash, "commit-hash", "", "commit SHA to generate a journal entry for")
	cmd.Flags().StringVar(&repoPath, "repo-path", ".", "path to the git repository")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 30, "wall-clock timeout in seconds")

	return cmd
}

func runWorker(ctx context.Context, commitHash, repoPath string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = lifecycle.DefaultWorkerTimeout
	}

	tcfg, err := telemetry.Resolve(config.TelemetryDocument(), os.Getenv)
	if err != nil {
		return fmt.Errorf("resolving telemetry config: %w", err)
	}
	providers, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()

	store := signalstore.New(repoPath)
	dir, err := store.EnsureDirectory()
	if err != nil {
		dir = ""
	}
	if dir != "" {
		if _, err := store.CleanupForNewCommit(dir); err != nil {
			fmt.Fprintf(os.Stderr, "signal cleanup: %v\n", err)
		}
	}

	journalDir := config.JournalPath()
	deps := orchestrator.Deps{
		RepoPath:       repoPath,
		LMClient:       unconfiguredLMClient{},
		JournalRootDir: journalDir,
		ChatOptions: aggregator.Options{
			LookbackHours:  config.LookbackHours(),
			CircuitBreaker: breaker,
		},
	}

	timedOut, err := lifecycle.RunWithTimeout(ctx, timeout, func(innerCtx context.Context) error {
		result := orchestrator.Orchestrate(innerCtx, commitHash, deps)
		if !result.Success {
			return fmt.Errorf("orchestration failed in phase %s: %s", result.Phase, result.Error)
		}
		return writeJournalEntry(innerCtx, journalDir, result, store, dir, commitHash)
	})
	if timedOut {
		return fmt.Errorf("worker timed out after %s", timeout)
	}
	return err
}

func writeJournalEntry(ctx context.Context, journalDir string, result orchestrator.Result, store *signalstore.Store, signalDir, commitHash string) error {
	if result.JournalEntry == nil {
		return nil
	}
	if err := os.MkdirAll(journalDir, 0o755); err != nil {
		return err
	}

	date := time.Now().UTC().Format("2006-01-02")
	path := filepath.Join(journalDir, date+"-journal.md")

	body, err := json.MarshalIndent(result.JournalEntry, "", "  ")
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(body, '\n')); err != nil {
		return err
	}

	summaryDir := filepath.Join(filepath.Dir(journalDir), "summaries", "daily")
	if summaryDate, ok := dailytrigger.Detect(journalDir, summaryDir, date); ok && signalDir != "" {
		// The daily-summary boundary was crossed; summary generation itself is
		// handled by the MCP server wrapper, which picks up this signal.
		params := map[string]any{"date": summaryDate}
		if _, err := store.Create(ctx, signalDir, "generate_daily_summary", params, commitHash); err != nil {
			fmt.Fprintf(os.Stderr, "daily summary signal: %v\n", err)
		}
	}
	return nil
}
