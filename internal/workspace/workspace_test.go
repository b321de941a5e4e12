package workspace

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/errs"
)

// writeCandidateDir creates a workspaceStorage subdirectory holding a
// workspace.json and a state.vscdb stand-in, the on-disk shape
// EnumerateCandidates scans.
func writeCandidateDir(t *testing.T, root, name, folder, gitRemote string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	ws := struct {
		Folder    string `json:"folder"`
		GitRemote string `json:"git_remote,omitempty"`
	}{Folder: folder, GitRemote: gitRemote}
	raw, err := json.Marshal(ws)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workspace.json"), raw, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.vscdb"), []byte{}, 0o644))
}

func initRepoWithRemote(t *testing.T, remote string) string {
	t.Helper()
	repo := t.TempDir()
	for _, args := range [][]string{
		{"init"},
		{"remote", "add", "origin", remote},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = repo
		require.NoError(t, cmd.Run())
	}
	return repo
}

func TestDetect_GitRemoteMatchWins(t *testing.T) {
	repo := initRepoWithRemote(t, "git@github.com:acme/widget.git")

	storageRoot := t.TempDir()
	writeCandidateDir(t, storageRoot, "a", "file:///home/dev/widget", "git@github.com:acme/widget.git")
	writeCandidateDir(t, storageRoot, "b", "file:///home/dev/widget", "")

	candidates := EnumerateCandidates([]string{storageRoot})
	require.Len(t, candidates, 2)

	match, err := Detect(repo, candidates)
	require.NoError(t, err)

	assert.Equal(t, MatchGitRemote, match.Type)
	assert.GreaterOrEqual(t, match.Confidence, 0.95)
	assert.Equal(t, filepath.Join(storageRoot, "a", "state.vscdb"), match.DBPath)
}

func TestDetect_FolderPathMatch(t *testing.T) {
	c := Candidate{DBPath: "/ws/b/state.vscdb", FolderURI: "file:///home/dev/widget"}

	confidence, matchType := scoreCandidate(c, "/home/dev/widget", "widget", nil)

	assert.Equal(t, MatchFolderPath, matchType)
	assert.GreaterOrEqual(t, confidence, 0.80)
	assert.Less(t, confidence, 0.90)
}

func TestDetect_FolderNameCappedBelow90(t *testing.T) {
	c := Candidate{DBPath: "/ws/c/state.vscdb", FolderURI: "file:///home/dev/widget"}

	confidence, matchType := scoreCandidate(c, "/somewhere/widget", "widget", nil)

	assert.Equal(t, MatchFolderName, matchType)
	assert.Less(t, confidence, 0.90)
}

func TestDetect_FallsBackToMostRecentWhenBelowThreshold(t *testing.T) {
	now := time.Now()
	candidates := []Candidate{
		{DBPath: "/ws/old/state.vscdb", FolderURI: "file:///nowhere/near", LastModified: now.Add(-time.Hour)},
		{DBPath: "/ws/new/state.vscdb", FolderURI: "file:///also/nowhere", LastModified: now},
	}

	match, err := Detect("/totally/unrelated/repo", candidates)

	require.NoError(t, err)
	assert.Equal(t, MatchMostRecent, match.Type)
	assert.Equal(t, 0.0, match.Confidence)
	assert.Equal(t, "/ws/new/state.vscdb", match.DBPath)
}

func TestDetect_NoCandidatesFails(t *testing.T) {
	_, err := Detect("/any/repo", nil)

	var wsErr *errs.WorkspaceDetection
	require.ErrorAs(t, err, &wsErr)
	assert.True(t, wsErr.FallbackAttempted)
}
