package timewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/gitctx"
)

func TestResolve_CommitBased(t *testing.T) {
	times := gitctx.CommitTimes{
		CommittedAtMs:       1_000_003_600_000,
		ParentCommittedAtMs: 1_000_000_000_000,
		HasParent:           true,
	}

	w := Resolve(times, 0)

	assert.Equal(t, StrategyCommitBased, w.Strategy)
	assert.Equal(t, int64(1_000_000_000_000), w.StartMs)
	assert.Equal(t, int64(1_000_003_600_000), w.EndMs)
	assert.Equal(t, 1.0, w.DurationHours)
	assert.Less(t, w.StartMs, w.EndMs)
}

func TestResolve_FirstCommitIsExactly24Hours(t *testing.T) {
	times := gitctx.CommitTimes{CommittedAtMs: 1_000_003_600_000, HasParent: false}

	w := Resolve(times, 0)

	assert.Equal(t, StrategyFirstCommit, w.Strategy)
	assert.Equal(t, 24.0, w.DurationHours)
	assert.Equal(t, w.EndMs-w.StartMs, int64(24*time.Hour/time.Millisecond))
}

func TestResolve_BoundedLookbackClampsTo48Hours(t *testing.T) {
	end := int64(1_000_000_000_000)
	start := end - int64(72*time.Hour/time.Millisecond)
	times := gitctx.CommitTimes{CommittedAtMs: end, ParentCommittedAtMs: start, HasParent: true}

	w := Resolve(times, DefaultLookbackHours)

	assert.Equal(t, StrategyBoundedLookback, w.Strategy)
	assert.Equal(t, 48.0, w.DurationHours)
	assert.Equal(t, end-int64(48*time.Hour/time.Millisecond), w.StartMs)
}

func TestResolveWithGitFailureFallback(t *testing.T) {
	now := time.Now()

	w := ResolveWithGitFailureFallback(now)

	assert.Equal(t, Strategy24HourFallback, w.Strategy)
	assert.Equal(t, 24.0, w.DurationHours)
	assert.Less(t, w.StartMs, w.EndMs)
}
