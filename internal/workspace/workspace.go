// Package workspace fuzzy-matches a git repository to the Cursor
// workspace-storage database that recorded its chat sessions.
package workspace

import (
	"encoding/json"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/errs"
)

// MatchType classifies how a WorkspaceMatch was resolved.
type MatchType string

const (
	MatchGitRemote  MatchType = "git_remote"
	MatchFolderPath MatchType = "folder_path"
	MatchFolderName MatchType = "folder_name"
	MatchMostRecent MatchType = "most_recent"
)

// ConfidenceThreshold is the minimum confidence a non-fallback match must
// clear to be returned directly instead of falling back to most_recent.
const ConfidenceThreshold = 0.80

// Candidate is a directory under a workspaceStorage root containing a
// workspace.json and its per-workspace database.
type Candidate struct {
	DBPath       string
	FolderURI    string
	RemoteURL    string
	LastModified time.Time
}

// Match is a ranked pairing of a repository path with a Candidate.
type Match struct {
	DBPath       string
	Confidence   float64
	Type         MatchType
	FolderURI    string
	RemoteURL    string
}

type workspaceJSON struct {
	Folder    string `json:"folder"`
	GitRemote string `json:"git_remote"`
}

// EnumerateCandidates scans every root for subdirectories holding a
// workspace.json and a state.vscdb, reading the workspace's folder URI
// and its optional remembered "git_remote" field. Corrupted workspace.json
// files are skipped silently.
func EnumerateCandidates(roots []string) []Candidate {
	var candidates []Candidate

	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(root, entry.Name())
			wsPath := filepath.Join(dir, "workspace.json")
			dbPath := filepath.Join(dir, "state.vscdb")

			raw, err := os.ReadFile(wsPath)
			if err != nil {
				continue
			}
			var ws workspaceJSON
			if err := json.Unmarshal(raw, &ws); err != nil {
				continue
			}

			info, err := os.Stat(dbPath)
			if err != nil {
				continue
			}

			candidates = append(candidates, Candidate{
				DBPath:       dbPath,
				FolderURI:    ws.Folder,
				RemoteURL:    ws.GitRemote,
				LastModified: info.ModTime(),
			})
		}
	}

	return candidates
}

// GitRemoteURLs returns the repo's configured remote URLs, best-effort.
// Failures yield an empty slice rather than an error.
func GitRemoteURLs(repoPath string) []string {
	cmd := exec.Command("git", "remote", "-v")
	cmd.Dir = repoPath
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var urls []string
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		u := fields[1]
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

// Detect fuzzy-matches repoPath against the discovered candidates and
// returns the single best WorkspaceMatch, falling back to the
// most-recently-modified database when no candidate clears the confidence
// threshold.
func Detect(repoPath string, candidates []Candidate) (Match, error) {
	remotes := GitRemoteURLs(repoPath)
	base := filepath.Base(filepath.Clean(repoPath))

	var best Match
	haveBest := false

	for _, c := range candidates {
		confidence, matchType := scoreCandidate(c, repoPath, base, remotes)
		if confidence <= 0 {
			continue
		}
		if !haveBest || isBetter(confidence, c.LastModified, best.Confidence, bestModTime(candidates, best)) {
			best = Match{
				DBPath:     c.DBPath,
				Confidence: confidence,
				Type:       matchType,
				FolderURI:  c.FolderURI,
				RemoteURL:  c.RemoteURL,
			}
			haveBest = true
		}
	}

	if haveBest && best.Confidence >= ConfidenceThreshold {
		return best, nil
	}

	if fallback, ok := mostRecent(candidates); ok {
		return fallback, nil
	}

	return Match{}, &errs.WorkspaceDetection{
		RepoPath:          repoPath,
		CandidatesScanned: len(candidates),
		FallbackAttempted: true,
	}
}

func scoreCandidate(c Candidate, repoPath, base string, remotes []string) (float64, MatchType) {
	if c.RemoteURL != "" {
		for _, r := range remotes {
			if r == c.RemoteURL {
				return 0.95, MatchGitRemote
			}
		}
	}

	if folderPath, err := folderURIToPath(c.FolderURI); err == nil && folderPath != "" {
		if filepath.Clean(folderPath) == filepath.Clean(repoPath) {
			return 0.85, MatchFolderPath
		}
	}

	candidateBase := filepath.Base(strings.TrimSuffix(c.FolderURI, "/"))
	if candidateBase != "" {
		return nameSimilarity(base, candidateBase), MatchFolderName
	}

	return 0, ""
}

func folderURIToPath(uri string) (string, error) {
	if uri == "" {
		return "", nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", nil
	}
	return u.Path, nil
}

// isBetter breaks ties by higher confidence first, then more-recent
// last-modified timestamp.
func isBetter(confA float64, modA time.Time, confB float64, modB time.Time) bool {
	if confA != confB {
		return confA > confB
	}
	return modA.After(modB)
}

func bestModTime(candidates []Candidate, m Match) time.Time {
	for _, c := range candidates {
		if c.DBPath == m.DBPath {
			return c.LastModified
		}
	}
	return time.Time{}
}

func mostRecent(candidates []Candidate) (Match, bool) {
	if len(candidates) == 0 {
		return Match{}, false
	}

	sorted := append([]Candidate(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LastModified.After(sorted[j].LastModified)
	})

	top := sorted[0]
	return Match{
		DBPath:     top.DBPath,
		Confidence: 0.0,
		Type:       MatchMostRecent,
		FolderURI:  top.FolderURI,
	}, true
}
