// Package platform resolves the host IDE's per-OS workspace-storage roots.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
)

// WorkspaceRoots returns the ordered list of existing directories that may
// contain Cursor workspaceStorage folders: the OS default first, followed
// by any extra roots supplied by configuration. Nonexistent roots are
// dropped silently; order among the existing ones is preserved.
func WorkspaceRoots(extra ...string) []string {
	candidates := append([]string{defaultRoot()}, extra...)

	roots := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			roots = append(roots, c)
		}
	}
	return roots
}

func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Cursor", "User", "workspaceStorage")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "Cursor", "User", "workspaceStorage")
	default:
		return filepath.Join(home, ".config", "Cursor", "User", "workspaceStorage")
	}
}
