// Package orchestrator drives one commit's journal generation: context
// collection, per-generator invocation, and validated assembly into a
// journal entry.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/aggregator"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/aifunc"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/errs"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/gitctx"
)

// Phase names the stage the orchestrator was in when it stopped early.
type Phase string

const (
	PhaseContext    Phase = "context_collection"
	PhaseGeneration Phase = "generation"
	PhaseAssembly   Phase = "validation_and_assembly"
)

// JournalContext is the assembled input handed to every generator.
type JournalContext struct {
	Git            *gitctx.Context         `json:"git"`
	Chat           *aggregator.ChatContext `json:"chat"`
	RecentJournal  string                  `json:"recent_journal"`
	CollectionErrs map[string]string       `json:"collection_errors,omitempty"`
}

// JournalEntry is the validated, assembled output of one orchestration run.
type JournalEntry struct {
	CommitHash        string            `json:"commit_hash"`
	GeneratedAt       string            `json:"generated_at"`
	Summary           string            `json:"summary"`
	TechnicalSynopsis string            `json:"technical_synopsis"`
	Accomplishments   []string          `json:"accomplishments"`
	Frustrations      []string          `json:"frustrations"`
	Mood              string            `json:"mood"`
	MoodIndicators    []string          `json:"mood_indicators"`
	DiscussionNotes   []string          `json:"discussion_notes"`
	CommitMetadata    map[string]string `json:"commit_metadata"`
}

// Result is the outcome of one orchestration run.
type Result struct {
	Success       bool
	JournalEntry  *JournalEntry
	Error         string
	Phase         Phase
	ExecutionTime time.Duration
	Errors        []string
}

// Deps is every external collaborator the orchestrator needs, injected so
// the orchestration algorithm itself has no direct dependency on how chat
// context, git context, or the LM client are constructed.
type Deps struct {
	RepoPath       string
	LMClient       aifunc.LMClient
	ChatOptions    aggregator.Options
	JournalRootDir string // directory holding prior journal files, newest read for RecentJournal
}

// Orchestrate runs the three-phase pipeline for one commit and returns its
// Result. It never panics on a sub-collection or generator failure; those
// are recorded and the pipeline proceeds on whatever survived.
func Orchestrate(ctx context.Context, commitHash string, deps Deps) Result {
	start := time.Now()
	result := Result{Phase: PhaseContext}

	journalCtx, collectionErrs, err := collectContext(ctx, commitHash, deps)
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		result.ExecutionTime = time.Since(start)
		return result
	}
	journalCtx.CollectionErrs = collectionErrs

	result.Phase = PhaseGeneration
	sections := generate(ctx, deps.LMClient, journalCtx)

	result.Phase = PhaseAssembly
	entry := assemble(commitHash, sections)

	result.Success = true
	result.JournalEntry = &entry
	for name, errMsg := range collectionErrs {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", name, errMsg))
	}
	for _, s := range sections {
		if s.Error != "" {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", s.Kind, s.Error))
		}
	}
	result.ExecutionTime = time.Since(start)
	return result
}

// collectContext gathers git, chat, and recent-journal context
// independently. A git-context failure is replaced by the fallback
// context described in the orchestrator's contract rather than treated as
// fatal; a repository that cannot be read at all is the only fatal case,
// checked up front before anything else runs.
func collectContext(ctx context.Context, commitHash string, deps Deps) (JournalContext, map[string]string, error) {
	if err := gitctx.EnsureRepository(deps.RepoPath); err != nil {
		return JournalContext{}, nil, &errs.RepositoryUnreadable{RepoPath: deps.RepoPath, Cause: err}
	}

	errsByName := map[string]string{}

	gitContext, err := gitctx.Collect(deps.RepoPath, commitHash)
	if err != nil {
		errsByName["git"] = err.Error()
		gitContext = gitctx.FallbackContext(commitHash)
	}

	var chatContext *aggregator.ChatContext
	chat, err := aggregator.ChatForCommit(ctx, deps.RepoPath, commitHash, deps.ChatOptions)
	if err != nil {
		errsByName["chat"] = err.Error()
	} else {
		chatContext = &chat
	}

	recentJournal, err := readRecentJournal(deps.JournalRootDir, commitHash)
	if err != nil {
		errsByName["recent_journal"] = err.Error()
	}

	return JournalContext{
		Git:           &gitContext,
		Chat:          chatContext,
		RecentJournal: recentJournal,
	}, errsByName, nil
}

// readRecentJournal returns the contents of the most recently modified
// journal file in dir, or empty string when none exists yet (the first
// commit in a repository has no prior entry to read).
func readRecentJournal(dir, commitHash string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	var newestPath string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newestMod) {
			newestMod = info.ModTime()
			newestPath = filepath.Join(dir, e.Name())
		}
	}
	if newestPath == "" {
		return "", nil
	}

	content, err := os.ReadFile(newestPath)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func generate(ctx context.Context, client aifunc.LMClient, journalCtx JournalContext) []aifunc.SectionResult {
	results := make([]aifunc.SectionResult, 0, len(aifunc.Registry))
	for _, entry := range aifunc.Registry {
		results = append(results, aifunc.Execute(ctx, client, entry, journalCtx))
	}
	return results
}

func assemble(commitHash string, sections []aifunc.SectionResult) JournalEntry {
	entry := JournalEntry{
		CommitHash:      commitHash,
		GeneratedAt:     time.Now().UTC().Format(time.RFC3339),
		Accomplishments: []string{},
		Frustrations:    []string{},
		DiscussionNotes: []string{},
		CommitMetadata:  map[string]string{},
	}

	for _, s := range sections {
		switch s.Kind {
		case aifunc.GeneratorSummary:
			entry.Summary = s.Text
		case aifunc.GeneratorTechnicalSynopsis:
			entry.TechnicalSynopsis = s.Text
		case aifunc.GeneratorAccomplishments:
			entry.Accomplishments = nonNilStrings(s.Items)
		case aifunc.GeneratorFrustrations:
			entry.Frustrations = nonNilStrings(s.Items)
		case aifunc.GeneratorToneMood:
			entry.Mood = s.Mood
			entry.MoodIndicators = nonNilStrings(s.Indicators)
		case aifunc.GeneratorDiscussionNotes:
			entry.DiscussionNotes = nonNilStrings(s.Items)
		case aifunc.GeneratorCommitMetadata:
			if s.Metadata != nil {
				entry.CommitMetadata = s.Metadata
			}
		}
	}

	return entry
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
