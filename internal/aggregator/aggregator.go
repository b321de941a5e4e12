// Package aggregator runs the Chat Provider across every discovered
// workspace database for a commit, merges the results, and reports
// data-quality metadata under partial-failure semantics.
package aggregator

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/chatprovider"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/gitctx"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/lifecycle"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/platform"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/timewindow"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/workspace"
)

// Status classifies how complete the aggregated chat context is.
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusEmpty    Status = "empty"
)

// DataQuality reports how many databases were found, queried, and failed.
type DataQuality struct {
	DatabasesFound    int      `json:"databases_found"`
	DatabasesQueried  int      `json:"databases_queried"`
	DatabasesFailed   int      `json:"databases_failed"`
	Status            Status   `json:"status"`
	FailureReasons     []string `json:"failure_reasons"`
}

// ChatContext is the output of multi-database extraction for one commit.
type ChatContext struct {
	Messages     []chatprovider.Message
	TimeWindow   timewindow.Window
	SessionNames []string
	DataQuality  DataQuality
}

// Options configures a single ChatForCommit call.
type Options struct {
	ExtraRoots      []string
	GlobalDBPath    string
	LookbackHours   float64
	CircuitBreaker  *lifecycle.CircuitBreaker
}

const circuitOpenFailureReason = "circuit_open"

// ChatForCommit detects the right workspace, discovers every database
// modified within the bounded look-back, resolves the commit's time
// window, and merges every database's chat extraction into one
// chronologically ordered ChatContext.
func ChatForCommit(ctx context.Context, repoPath, commitHash string, opts Options) (ChatContext, error) {
	lookback := opts.LookbackHours
	if lookback <= 0 {
		lookback = timewindow.DefaultLookbackHours
	}

	if opts.CircuitBreaker != nil && opts.CircuitBreaker.IsOpen() {
		return ChatContext{
			DataQuality: DataQuality{
				Status:        StatusEmpty,
				FailureReasons: []string{circuitOpenFailureReason},
			},
		}, nil
	}

	roots := platform.WorkspaceRoots(opts.ExtraRoots...)
	allCandidates := workspace.EnumerateCandidates(roots)

	match, err := workspace.Detect(repoPath, allCandidates)
	if err != nil {
		return ChatContext{}, err
	}

	cutoff := time.Now().Add(-time.Duration(lookback) * time.Hour)
	var discovered []workspace.Candidate
	seen := map[string]bool{match.DBPath: true}
	discovered = append(discovered, workspace.Candidate{DBPath: match.DBPath})
	for _, c := range allCandidates {
		if seen[c.DBPath] {
			continue
		}
		if info, statErr := os.Stat(c.DBPath); statErr == nil && info.ModTime().After(cutoff) {
			discovered = append(discovered, c)
			seen[c.DBPath] = true
		}
	}

	window, err := resolveWindow(repoPath, commitHash, lookback)
	if err != nil {
		return ChatContext{}, err
	}

	var allMessages []chatprovider.Message
	sessionNames := map[string]bool{}
	var failureReasons []string
	databasesQueried := 0
	databasesFailed := 0

	for _, candidate := range discovered {
		databasesQueried++
		messages, _, err := chatprovider.ChatForWindow(ctx, candidate.DBPath, opts.GlobalDBPath, window.StartMs, window.EndMs)
		if err != nil {
			databasesFailed++
			failureReasons = append(failureReasons, fmt.Sprintf("%s: %v", candidate.DBPath, err))
			if opts.CircuitBreaker != nil {
				opts.CircuitBreaker.RecordFailure()
			}
			continue
		}
		if opts.CircuitBreaker != nil {
			opts.CircuitBreaker.RecordSuccess()
		}
		allMessages = append(allMessages, messages...)
		for _, m := range messages {
			sessionNames[m.SessionName] = true
		}
	}

	sort.SliceStable(allMessages, func(i, j int) bool {
		a, b := allMessages[i], allMessages[j]
		if a.TimestampMs != b.TimestampMs {
			return a.TimestampMs < b.TimestampMs
		}
		return a.SessionID < b.SessionID
	})

	names := make([]string, 0, len(sessionNames))
	for n := range sessionNames {
		names = append(names, n)
	}
	sort.Strings(names)

	return ChatContext{
		Messages:     allMessages,
		TimeWindow:   window,
		SessionNames: names,
		DataQuality: DataQuality{
			DatabasesFound:   len(discovered),
			DatabasesQueried: databasesQueried,
			DatabasesFailed:  databasesFailed,
			Status:           classifyStatus(len(allMessages), databasesFailed),
			FailureReasons:    failureReasons,
		},
	}, nil
}

func resolveWindow(repoPath, commitHash string, lookbackHours float64) (timewindow.Window, error) {
	times, err := gitctx.LoadCommitTimes(repoPath, commitHash)
	if err != nil {
		return timewindow.ResolveWithGitFailureFallback(time.Now()), nil
	}
	return timewindow.Resolve(times, lookbackHours), nil
}

func classifyStatus(messageCount, failed int) Status {
	if failed == 0 && messageCount == 0 {
		return StatusEmpty
	}
	if failed == 0 {
		return StatusComplete
	}
	return StatusPartial
}
