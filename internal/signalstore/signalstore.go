// Package signalstore creates, validates, and cleans up the minimal JSON
// signal files that hand work off to an external AI client.
package signalstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/errs"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/gitctx"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/lifecycle"
)

// DirName is the signals directory's name under the repository root.
const DirName = ".mcp-commit-story/signals"

// Signal is the minimal hand-off document: exactly these three fields,
// nothing else.
type Signal struct {
	Tool      string         `json:"tool"`
	Params    map[string]any `json:"params"`
	CreatedAt string         `json:"created_at"`
}

// Store owns the signals directory for one repository and serialises
// creation through a process-wide lock.
type Store struct {
	repoPath string
	lock     *lifecycle.SignalLock

	mu        sync.Mutex
	processed map[string]bool
}

// New builds a Store scoped to repoPath. The lock is backed by a lockfile
// inside the signals directory itself.
func New(repoPath string) *Store {
	dir := filepath.Join(repoPath, DirName)
	return &Store{
		repoPath:  repoPath,
		lock:      lifecycle.NewSignalLock(filepath.Join(dir, ".lock")),
		processed: map[string]bool{},
	}
}

// EnsureDirectory creates the signals directory if missing and returns its
// absolute path. Idempotent.
func (s *Store) EnsureDirectory() (string, error) {
	dir := filepath.Join(s.repoPath, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &errs.SignalDirectory{Cause: err, GracefulDegradation: true}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &errs.SignalDirectory{Cause: err, GracefulDegradation: true}
	}
	return abs, nil
}

// Create writes a minimal signal file to dir, merging commitHash into
// params under "commit_hash". params is the tool's own call arguments,
// never commit metadata (author, emails, file paths) — callers must keep
// it clean themselves, the same separation the original draws between
// "parameters" and "commit_metadata" (of which only the hash survives).
// The filename is <timestamp>_<tool>_<hash8>[_NNNN].json, where timestamp
// carries microsecond precision and NNNN disambiguates same-microsecond
// collisions. The write is serialised by the store's process-wide lock.
func (s *Store) Create(ctx context.Context, dir, tool string, params map[string]any, commitHash string) (string, error) {
	if commitHash == "" {
		return "", &errs.SignalFile{Cause: fmt.Errorf("commit hash is required"), GracefulDegradation: true}
	}

	unlock, err := s.lock.Lock(ctx)
	if err != nil {
		return "", &errs.SignalFile{Cause: err, GracefulDegradation: true}
	}
	defer unlock()

	now := time.Now().UTC()
	timestamp := now.Format("20060102_150405.000000")
	timestamp = strings.Replace(timestamp, ".", "_", 1)

	hashPrefix := commitHash
	if len(hashPrefix) > 8 {
		hashPrefix = hashPrefix[:8]
	}

	minimalParams := map[string]any{"commit_hash": commitHash}
	for k, v := range params {
		minimalParams[k] = v
	}

	doc := Signal{Tool: tool, Params: minimalParams, CreatedAt: now.Format(time.RFC3339Nano)}
	if err := Validate(doc); err != nil {
		return "", err
	}

	path, err := nextAvailablePath(dir, timestamp, tool, hashPrefix)
	if err != nil {
		return "", &errs.SignalFile{Cause: err, GracefulDegradation: true}
	}

	if err := writePrettySorted(path, doc); err != nil {
		return "", &errs.SignalFile{Cause: err, GracefulDegradation: true}
	}

	return path, nil
}

func nextAvailablePath(dir, timestamp, tool, hashPrefix string) (string, error) {
	base := fmt.Sprintf("%s_%s_%s", timestamp, tool, hashPrefix)
	path := filepath.Join(dir, base+".json")

	counter := 0
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		} else if err != nil {
			return "", err
		}
		counter++
		path = filepath.Join(dir, fmt.Sprintf("%s_%04d.json", base, counter))
	}
}

func writePrettySorted(path string, doc Signal) error {
	// Marshal through a generic map so keys come out sorted, matching the
	// original's json.dump(..., sort_keys=True).
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}

	pretty, err := marshalSortedIndent(generic, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, pretty, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Validate enforces exactly {tool, params, created_at}, correct types, and
// non-empty strings.
func Validate(doc Signal) error {
	if strings.TrimSpace(doc.Tool) == "" {
		return &errs.SignalValidation{Field: "tool", Reason: "must not be empty"}
	}
	if doc.Params == nil {
		return &errs.SignalValidation{Field: "params", Reason: "must be present"}
	}
	if strings.TrimSpace(doc.CreatedAt) == "" {
		return &errs.SignalValidation{Field: "created_at", Reason: "must not be empty"}
	}
	return nil
}

// ValidateRaw validates a raw decoded JSON document, rejecting any field
// outside {tool, params, created_at}.
func ValidateRaw(raw map[string]any) error {
	allowed := map[string]bool{"tool": true, "params": true, "created_at": true}
	for k := range raw {
		if !allowed[k] {
			return &errs.SignalValidation{Field: k, Reason: "extra field not allowed"}
		}
	}

	tool, ok := raw["tool"].(string)
	if !ok {
		return &errs.SignalValidation{Field: "tool", Reason: "must be a string"}
	}
	if strings.TrimSpace(tool) == "" {
		return &errs.SignalValidation{Field: "tool", Reason: "must not be empty"}
	}

	params, ok := raw["params"].(map[string]any)
	if !ok {
		return &errs.SignalValidation{Field: "params", Reason: "must be an object"}
	}
	_ = params

	createdAt, ok := raw["created_at"].(string)
	if !ok {
		return &errs.SignalValidation{Field: "created_at", Reason: "must be a string"}
	}
	if strings.TrimSpace(createdAt) == "" {
		return &errs.SignalValidation{Field: "created_at", Reason: "must not be empty"}
	}

	return nil
}

// CleanupResult reports how many prior signals were removed.
type CleanupResult struct {
	PreviousSignalsCleared int
}

// CleanupForNewCommit deletes every file in the signals directory except
// the store's .lock file, after verifying the directory path ends in
// .mcp-commit-story/signals and exists. It never touches anything outside
// that directory.
func (s *Store) CleanupForNewCommit(dir string) (CleanupResult, error) {
	if !isBlessedSignalsDir(dir) {
		return CleanupResult{}, &errs.SignalDirectory{
			Cause:               fmt.Errorf("refusing to clean up non-signals path: %s", dir),
			GracefulDegradation: true,
		}
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return CleanupResult{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return CleanupResult{}, &errs.SignalDirectory{Cause: err, GracefulDegradation: true}
	}

	cleared := 0
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".lock") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
			cleared++
		}
	}

	s.mu.Lock()
	s.processed = map[string]bool{}
	s.mu.Unlock()

	return CleanupResult{PreviousSignalsCleared: cleared}, nil
}

func isBlessedSignalsDir(dir string) bool {
	clean := filepath.Clean(dir)
	return strings.HasSuffix(filepath.ToSlash(clean), ".mcp-commit-story/signals")
}

// MarkProcessed records path as handled.
func (s *Store) MarkProcessed(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[path] = true
}

// IsProcessed reports whether path was previously marked processed.
func (s *Store) IsProcessed(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed[path]
}

// RemoveResult reports how cleanup by processed-state split.
type RemoveResult struct {
	ProcessedRemoved     int
	UnprocessedPreserved int
}

// RemoveProcessed deletes only the files previously marked processed,
// leaving unprocessed signals in place.
func (s *Store) RemoveProcessed(dir string) (RemoveResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return RemoveResult{}, &errs.SignalDirectory{Cause: err, GracefulDegradation: true}
	}

	var result RemoveResult
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if s.IsProcessed(path) {
			if err := os.Remove(path); err == nil {
				result.ProcessedRemoved++
			}
		} else {
			result.UnprocessedPreserved++
		}
	}
	return result, nil
}

// CountSignalFiles counts the .json files currently in dir.
func CountSignalFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			count++
		}
	}
	return count
}

// LatestSignalFile returns the most recently created signal file's path,
// relying on the filename's timestamp prefix for chronological sort.
func LatestSignalFile(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), true
}

// ReadSignalFile reads and validates a signal file's contents.
func ReadSignalFile(path string) (Signal, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Signal{}, &errs.SignalValidation{Reason: fmt.Sprintf("reading %s: %v", path, err)}
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Signal{}, &errs.SignalValidation{Reason: fmt.Sprintf("invalid JSON in %s: %v", path, err)}
	}
	if err := ValidateRaw(generic); err != nil {
		return Signal{}, err
	}

	var doc Signal
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Signal{}, &errs.SignalValidation{Reason: fmt.Sprintf("decoding %s: %v", path, err)}
	}
	return doc, nil
}

// FetchGitContext re-hydrates a signal's git context from just the commit
// hash, since the signal itself deliberately stores no metadata beyond it.
func (s *Store) FetchGitContext(commitHash string) (gitctx.Context, error) {
	return gitctx.Collect(s.repoPath, commitHash)
}

// ProcessWithContext enriches a minimal signal with on-demand git context,
// without mutating the on-disk signal itself.
func (s *Store) ProcessWithContext(doc Signal) (Signal, *gitctx.Context, error) {
	commitHash, _ := doc.Params["commit_hash"].(string)
	if commitHash == "" {
		return doc, nil, nil
	}
	ctx, err := s.FetchGitContext(commitHash)
	if err != nil {
		return doc, nil, nil
	}
	return doc, &ctx, nil
}

// marshalSortedIndent renders v (a map[string]any tree from json.Unmarshal)
// with sorted keys and two-space indentation, matching
// json.dump(..., indent=2, sort_keys=True) byte-for-byte in spirit.
func marshalSortedIndent(v any, prefix, indent string) ([]byte, error) {
	var b strings.Builder
	if err := writeSorted(&b, v, prefix, indent); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func writeSorted(b *strings.Builder, v any, prefix, indent string) error {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 0 {
			b.WriteString("{}")
			return nil
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		childPrefix := prefix + indent
		b.WriteString("{\n")
		for i, k := range keys {
			b.WriteString(childPrefix)
			keyJSON, err := json.Marshal(k)
			if err != nil {
				return err
			}
			b.Write(keyJSON)
			b.WriteString(": ")
			if err := writeSorted(b, val[k], childPrefix, indent); err != nil {
				return err
			}
			if i < len(keys)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString(prefix + "}")
		return nil
	case []any:
		if len(val) == 0 {
			b.WriteString("[]")
			return nil
		}
		childPrefix := prefix + indent
		b.WriteString("[\n")
		for i, item := range val {
			b.WriteString(childPrefix)
			if err := writeSorted(b, item, childPrefix, indent); err != nil {
				return err
			}
			if i < len(val)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString(prefix + "]")
		return nil
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return err
		}
		b.Write(raw)
		return nil
	}
}
