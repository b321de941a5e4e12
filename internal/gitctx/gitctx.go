// Package gitctx collects a commit's metadata and diff into a Git Context,
// and resolves the raw commit timestamps the time-window resolver needs.
package gitctx

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// SizeClass buckets a commit by how much it touched.
type SizeClass string

const (
	SizeSmall  SizeClass = "small"
	SizeMedium SizeClass = "medium"
	SizeLarge  SizeClass = "large"
)

// MaxDiffBytes caps how much of a single file's diff is retained; larger
// diffs are truncated with a marker appended.
const MaxDiffBytes = 8 * 1024

// FileDiff is one changed file's textual diff, or a binary marker.
type FileDiff struct {
	Path     string `json:"path"`
	Diff     string `json:"diff"`
	Binary   bool   `json:"binary"`
	Status   string `json:"status"`
	Truncated bool  `json:"truncated"`
}

// FileStats aggregates insertions/deletions across all changed files.
type FileStats struct {
	FilesChanged int `json:"files_changed"`
	Insertions   int `json:"insertions"`
	Deletions    int `json:"deletions"`
}

// Context is the full Git Context handed to the orchestrator.
type Context struct {
	CommitHash   string     `json:"commit_hash"`
	Message      string     `json:"message"`
	Author       string     `json:"author"`
	AuthorEmail  string     `json:"author_email"`
	CommittedAtMs int64     `json:"committed_at_ms"`
	ParentHashes []string   `json:"parent_hashes"`
	ChangedFiles []string   `json:"changed_files"`
	Diffs        []FileDiff `json:"diffs"`
	FileStats    FileStats  `json:"file_stats"`
	SizeClass    SizeClass  `json:"size_class"`
	IsMerge      bool       `json:"is_merge"`
	DiffSummary  string     `json:"diff_summary"`
}

// CommitTimes is the minimal timestamp data the time-window resolver needs.
type CommitTimes struct {
	Hash                 string
	CommittedAtMs        int64
	ParentHash           string
	ParentCommittedAtMs  int64
	HasParent            bool
}

// FallbackContext is the minimal Git Context used when collection fails
// entirely, so generators still receive something to work with.
func FallbackContext(commitHash string) Context {
	return Context{
		CommitHash:   commitHash,
		Message:      "Context collection failed",
		ChangedFiles: []string{},
		FileStats:    FileStats{},
		DiffSummary:  "Git context unavailable",
	}
}

// DisplaySpeaker maps the normalized role used internally back to the
// original source's capitalised speaker labels, for any renderer that
// wants them.
func DisplaySpeaker(role string) string {
	switch role {
	case "user":
		return "Human"
	case "assistant":
		return "Assistant"
	default:
		return role
	}
}

// LoadCommitTimes resolves the committed-at timestamp and immediate parent
// (if any) of commitHash in repoPath.
func LoadCommitTimes(repoPath, commitHash string) (CommitTimes, error) {
	out, err := runGit(repoPath, "show", "-s", "--format=%H%n%ct%n%P", commitHash)
	if err != nil {
		return CommitTimes{}, err
	}

	lines := strings.SplitN(out, "\n", 3)
	if len(lines) < 2 {
		return CommitTimes{}, fmt.Errorf("unexpected git show output for %s", commitHash)
	}

	hash := lines[0]
	committedAt, err := strconv.ParseInt(strings.TrimSpace(lines[1]), 10, 64)
	if err != nil {
		return CommitTimes{}, fmt.Errorf("parsing commit time: %w", err)
	}

	var parentHash string
	hasParent := false
	if len(lines) == 3 {
		parents := strings.Fields(lines[2])
		if len(parents) > 0 {
			parentHash = parents[0]
			hasParent = true
		}
	}

	times := CommitTimes{
		Hash:          hash,
		CommittedAtMs: committedAt * 1000,
		ParentHash:    parentHash,
		HasParent:     hasParent,
	}

	if hasParent {
		parentOut, err := runGit(repoPath, "show", "-s", "--format=%ct", parentHash)
		if err != nil {
			return CommitTimes{}, err
		}
		parentCommittedAt, err := strconv.ParseInt(strings.TrimSpace(parentOut), 10, 64)
		if err != nil {
			return CommitTimes{}, fmt.Errorf("parsing parent commit time: %w", err)
		}
		times.ParentCommittedAtMs = parentCommittedAt * 1000
	}

	return times, nil
}

// EnsureRepository confirms repoPath is inside a readable git work tree.
// This is the one check the orchestrator treats as fatal; every other
// git failure in Collect falls back to FallbackContext instead.
func EnsureRepository(repoPath string) error {
	_, err := runGit(repoPath, "rev-parse", "--is-inside-work-tree")
	return err
}

// Collect gathers the full Git Context for commitHash: metadata, changed
// files, per-file diffs (binary-filtered, size-capped), aggregate stats,
// size classification, and the merge flag.
func Collect(repoPath, commitHash string) (Context, error) {
	meta, err := runGit(repoPath, "show", "-s", "--format=%H%n%an%n%ae%n%ct%n%P%n%B", commitHash)
	if err != nil {
		return Context{}, err
	}
	lines := strings.SplitN(meta, "\n", 6)
	if len(lines) < 5 {
		return Context{}, fmt.Errorf("unexpected git show metadata for %s", commitHash)
	}

	hash := lines[0]
	author := lines[1]
	email := lines[2]
	committedAt, err := strconv.ParseInt(strings.TrimSpace(lines[3]), 10, 64)
	if err != nil {
		return Context{}, fmt.Errorf("parsing commit time: %w", err)
	}
	parents := strings.Fields(lines[4])
	message := ""
	if len(lines) == 6 {
		message = strings.TrimRight(lines[5], "\n")
	}

	nameStatus, err := runGit(repoPath, "diff-tree", "--root", "--no-commit-id", "--name-status", "-r", commitHash)
	if err != nil {
		nameStatus = ""
	}

	numstat, err := runGit(repoPath, "diff-tree", "--root", "--no-commit-id", "--numstat", "-r", commitHash)
	if err != nil {
		numstat = ""
	}

	changedFiles, diffs, stats := buildDiffs(repoPath, commitHash, nameStatus, numstat)

	ctx := Context{
		CommitHash:    hash,
		Message:       message,
		Author:        author,
		AuthorEmail:   email,
		CommittedAtMs: committedAt * 1000,
		ParentHashes:  parents,
		ChangedFiles:  changedFiles,
		Diffs:         diffs,
		FileStats:     stats,
		IsMerge:       len(parents) > 1,
	}
	ctx.SizeClass = classifySize(stats)
	ctx.DiffSummary = summarize(stats, ctx.SizeClass)

	return ctx, nil
}

func buildDiffs(repoPath, commitHash, nameStatus, numstat string) ([]string, []FileDiff, FileStats) {
	binaryFiles := map[string]bool{}
	var stats FileStats

	for _, line := range strings.Split(numstat, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 3 {
			continue
		}
		if fields[0] == "-" || fields[1] == "-" {
			binaryFiles[fields[2]] = true
			continue
		}
		ins, _ := strconv.Atoi(fields[0])
		del, _ := strconv.Atoi(fields[1])
		stats.Insertions += ins
		stats.Deletions += del
	}

	var changedFiles []string
	var diffs []FileDiff

	for _, line := range strings.Split(nameStatus, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		status, path := fields[0], fields[len(fields)-1]
		changedFiles = append(changedFiles, path)
		stats.FilesChanged++

		if binaryFiles[path] || isGeneratedPath(path) {
			diffs = append(diffs, FileDiff{Path: path, Status: status, Binary: true})
			continue
		}

		diffText, truncated := fileDiff(repoPath, commitHash, path)
		diffs = append(diffs, FileDiff{Path: path, Status: status, Diff: diffText, Truncated: truncated})
	}

	return changedFiles, diffs, stats
}

func fileDiff(repoPath, commitHash, path string) (string, bool) {
	out, err := runGit(repoPath, "show", commitHash, "--", path)
	if err != nil {
		return "", false
	}
	if len(out) > MaxDiffBytes {
		return out[:MaxDiffBytes] + "\n... (truncated)", true
	}
	return out, false
}

func isGeneratedPath(path string) bool {
	for _, suffix := range []string{".lock", ".min.js", ".map", ".generated.go"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return strings.Contains(path, "vendor/") || strings.Contains(path, "node_modules/")
}

func classifySize(stats FileStats) SizeClass {
	total := stats.Insertions + stats.Deletions
	switch {
	case stats.FilesChanged <= 3 && total <= 50:
		return SizeSmall
	case stats.FilesChanged <= 15 && total <= 500:
		return SizeMedium
	default:
		return SizeLarge
	}
}

func summarize(stats FileStats, size SizeClass) string {
	return fmt.Sprintf("%d file(s) changed, +%d/-%d (%s)", stats.FilesChanged, stats.Insertions, stats.Deletions, size)
}

func runGit(repoPath string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = repoPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
