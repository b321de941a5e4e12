package orchestrator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/aggregator"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/lifecycle"
)

func initRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}

	run("init")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello\n"), 0o644))
	run("add", "a.txt")
	run("commit", "-m", "first commit")

	out, err := exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output()
	require.NoError(t, err)
	hash := string(out[:len(out)-1])

	return dir, hash
}

type fakeLMClient struct{}

func (fakeLMClient) Invoke(ctx context.Context, prompt string) (string, error) {
	return `{"summary": "did the thing"}`, nil
}

func TestOrchestrate_SucceedsWithFullContext(t *testing.T) {
	repo, hash := initRepo(t)
	journalDir := t.TempDir()

	deps := Deps{
		RepoPath:       repo,
		LMClient:       fakeLMClient{},
		JournalRootDir: journalDir,
		ChatOptions: aggregator.Options{
			CircuitBreaker: lifecycle.NewCircuitBreaker(lifecycle.DefaultFailureThreshold),
		},
	}

	result := Orchestrate(context.Background(), hash, deps)

	require.True(t, result.Success)
	require.NotNil(t, result.JournalEntry)
	assert.Equal(t, hash, result.JournalEntry.CommitHash)
	assert.Equal(t, "did the thing", result.JournalEntry.Summary)
	assert.NotEmpty(t, result.JournalEntry.Accomplishments)
}

func TestOrchestrate_UnreadableRepositoryIsFatal(t *testing.T) {
	repo := t.TempDir() // not a git repo at all
	journalDir := t.TempDir()

	deps := Deps{
		RepoPath:       repo,
		LMClient:       fakeLMClient{},
		JournalRootDir: journalDir,
		ChatOptions: aggregator.Options{
			CircuitBreaker: lifecycle.NewCircuitBreaker(lifecycle.DefaultFailureThreshold),
		},
	}

	result := Orchestrate(context.Background(), "deadbeef", deps)

	require.False(t, result.Success)
	require.Nil(t, result.JournalEntry)
	assert.Equal(t, PhaseContext, result.Phase)
	assert.NotEmpty(t, result.Error)
}

func TestOrchestrate_BadCommitFallsBackButStillSucceeds(t *testing.T) {
	repo, _ := initRepo(t) // a real repo, but the commit hash below doesn't exist in it
	journalDir := t.TempDir()

	deps := Deps{
		RepoPath:       repo,
		LMClient:       fakeLMClient{},
		JournalRootDir: journalDir,
		ChatOptions: aggregator.Options{
			CircuitBreaker: lifecycle.NewCircuitBreaker(lifecycle.DefaultFailureThreshold),
		},
	}

	result := Orchestrate(context.Background(), "0000000000000000000000000000000000dead", deps)

	require.True(t, result.Success)
	require.NotNil(t, result.JournalEntry)
	assert.NotEmpty(t, result.Errors)
}

func TestOrchestrate_RecordsExecutionTime(t *testing.T) {
	repo, hash := initRepo(t)

	deps := Deps{
		RepoPath:       repo,
		LMClient:       fakeLMClient{},
		JournalRootDir: t.TempDir(),
		ChatOptions: aggregator.Options{
			CircuitBreaker: lifecycle.NewCircuitBreaker(lifecycle.DefaultFailureThreshold),
		},
	}

	result := Orchestrate(context.Background(), hash, deps)
	assert.GreaterOrEqual(t, result.ExecutionTime, time.Duration(0))
}
