// Package githook installs the post-commit hook that spawns the background
// worker, and exposes the process-group timeout kill used to bound the
// worker's own wall-clock lifetime.
package githook

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const hookSignature = "mcp-commit-story post-commit hook"

// InstallOptions controls how the post-commit hook script is generated.
type InstallOptions struct {
	WorkerBinary string        // path or name of the worker executable to spawn
	Background   bool          // detach with nohup + & when true
	Timeout      time.Duration // passed through to the worker as --timeout
}

// Install writes .git/hooks/post-commit in repoPath, backing up any
// pre-existing hook that isn't already ours with a timestamped suffix
// rather than overwriting it silently.
func Install(repoPath string, opts InstallOptions) error {
	hooksDir := filepath.Join(repoPath, ".git", "hooks")
	if err := os.MkdirAll(hooksDir, 0o750); err != nil {
		return fmt.Errorf("creating hooks directory: %w", err)
	}

	hookPath := filepath.Join(hooksDir, "post-commit")
	if existing, err := os.ReadFile(hookPath); err == nil {
		if !strings.Contains(string(existing), hookSignature) {
			if err := backupExisting(hookPath); err != nil {
				return err
			}
		}
	}

	script := buildPostCommitScript(opts)
	if err := os.WriteFile(hookPath, []byte(script), 0o750); err != nil {
		return fmt.Errorf("writing post-commit hook: %w", err)
	}
	return nil
}

func backupExisting(hookPath string) error {
	suffix := time.Now().Format("20060102-150405")
	backup := hookPath + ".backup." + suffix
	for i := 1; ; i++ {
		if _, err := os.Stat(backup); os.IsNotExist(err) {
			break
		}
		backup = fmt.Sprintf("%s.backup.%s.%d", hookPath, suffix, i)
	}
	return os.Rename(hookPath, backup)
}

func buildPostCommitScript(opts InstallOptions) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("# " + hookSignature + "\n")
	b.WriteString("COMMIT_HASH=$(git rev-parse HEAD)\n")
	b.WriteString("REPO_PATH=$(git rev-parse --show-toplevel)\n")

	invocation := fmt.Sprintf("%s --commit-hash \"$COMMIT_HASH\" --repo-path \"$REPO_PATH\" --timeout %d",
		opts.WorkerBinary, int(opts.Timeout.Seconds()))

	if opts.Background {
		b.WriteString("nohup " + invocation + " >/dev/null 2>&1 &\n")
		b.WriteString("disown\n")
	} else {
		b.WriteString(invocation + " || true\n")
	}
	return b.String()
}

// RunWithProcessGroupTimeout runs name with args under ctx's deadline,
// killing the entire process group (not just the direct child) if the
// deadline is reached, so that any descendants the worker spawns do not
// outlive the timeout.
func RunWithProcessGroupTimeout(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = processGroupAttr()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			if err := killProcessGroup(cmd.Process.Pid); err != nil {
				return stdout.Bytes(), stderr.Bytes(), fmt.Errorf("killing process group: %w", err)
			}
		}
		<-done
		return stdout.Bytes(), stderr.Bytes(), ctx.Err()
	case err := <-done:
		return stdout.Bytes(), stderr.Bytes(), err
	}
}
