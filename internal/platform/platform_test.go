package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceRoots_SkipsMissingExtras(t *testing.T) {
	tmp := t.TempDir()
	extra := filepath.Join(tmp, "exists")
	require.NoError(t, os.MkdirAll(extra, 0o755))

	missing := filepath.Join(tmp, "does-not-exist")

	roots := WorkspaceRoots(extra, missing)

	assert.Contains(t, roots, extra)
	assert.NotContains(t, roots, missing)
}

func TestWorkspaceRoots_PreservesOrder(t *testing.T) {
	tmp := t.TempDir()
	a := filepath.Join(tmp, "a")
	b := filepath.Join(tmp, "b")
	require.NoError(t, os.MkdirAll(a, 0o755))
	require.NoError(t, os.MkdirAll(b, 0o755))

	roots := WorkspaceRoots(a, b)

	idxA, idxB := -1, -1
	for i, r := range roots {
		if r == a {
			idxA = i
		}
		if r == b {
			idxB = i
		}
	}
	require.NotEqual(t, -1, idxA)
	require.NotEqual(t, -1, idxB)
	assert.Less(t, idxA, idxB)
}
