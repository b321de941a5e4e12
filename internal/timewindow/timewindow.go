// Package timewindow derives the [start, end] millisecond window used to
// filter chat sessions for a given commit.
package timewindow

import (
	"time"

	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/gitctx"
)

// Strategy names how a Window was derived.
type Strategy string

const (
	StrategyCommitBased     Strategy = "commit_based"
	StrategyFirstCommit     Strategy = "first_commit"
	Strategy24HourFallback  Strategy = "24_hour_fallback"
	StrategyBoundedLookback Strategy = "bounded_lookback"
)

// DefaultFallbackHours is the window length used when a commit has no
// parent, or when git access fails entirely.
const DefaultFallbackHours = 24

// DefaultLookbackHours bounds how far back a commit-based window may
// extend when the previous commit is older than this cap.
const DefaultLookbackHours = 48

// Window is the [start_ms, end_ms] range used to filter chat sessions,
// together with the strategy that produced it.
type Window struct {
	StartMs        int64
	EndMs          int64
	Strategy       Strategy
	DurationHours  float64
}

// Resolve derives the commit window from already-loaded commit timestamps.
// maxLookbackHours defaults to DefaultLookbackHours when zero.
func Resolve(times gitctx.CommitTimes, maxLookbackHours float64) Window {
	if maxLookbackHours <= 0 {
		maxLookbackHours = DefaultLookbackHours
	}

	var w Window
	if times.HasParent {
		w = resolveFromParent(times, maxLookbackHours)
	} else {
		w = Window{
			StartMs:       times.CommittedAtMs - hoursToMs(DefaultFallbackHours),
			EndMs:         times.CommittedAtMs,
			Strategy:      StrategyFirstCommit,
			DurationHours: DefaultFallbackHours,
		}
	}

	return w
}

// ResolveWithGitFailureFallback is the same as Resolve but used by callers
// that could not load the commit's timestamps at all (git access failed
// entirely): it windows the last 24 hours ending now.
func ResolveWithGitFailureFallback(now time.Time) Window {
	endMs := now.UnixMilli()
	return Window{
		StartMs:       endMs - hoursToMs(DefaultFallbackHours),
		EndMs:         endMs,
		Strategy:      Strategy24HourFallback,
		DurationHours: DefaultFallbackHours,
	}
}

func resolveFromParent(times gitctx.CommitTimes, maxLookbackHours float64) Window {
	start := times.ParentCommittedAtMs
	end := times.CommittedAtMs

	durationHours := round1(float64(end-start) / float64(time.Hour/time.Millisecond))

	if durationHours > maxLookbackHours {
		start = end - hoursToMs(maxLookbackHours)
		return Window{
			StartMs:       start,
			EndMs:         end,
			Strategy:      StrategyBoundedLookback,
			DurationHours: round1(maxLookbackHours),
		}
	}

	return Window{
		StartMs:       start,
		EndMs:         end,
		Strategy:      StrategyCommitBased,
		DurationHours: durationHours,
	}
}

func hoursToMs(hours float64) int64 {
	return int64(hours * float64(time.Hour/time.Millisecond))
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
