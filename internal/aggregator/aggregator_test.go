package aggregator

import (
	"context"
	"database/sql"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runGitAt(t *testing.T, dir string, env []string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
}

func makeWorkspaceDB(t *testing.T, dir, folderURI, allComposersJSON string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workspace.json"), []byte(`{"folder":"`+folderURI+`"}`), 0o644))

	dbPath := filepath.Join(dir, "state.vscdb")
	db, err := sql.Open("sqlite3", "file:"+dbPath)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE ItemTable (key TEXT PRIMARY KEY, value BLOB)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO ItemTable (key, value) VALUES ('composer.composerData', ?)`, allComposersJSON)
	require.NoError(t, err)
}

func makeGlobalDB(t *testing.T, path string, kv map[string]string) {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE cursorDiskKV (key TEXT, value BLOB)`)
	require.NoError(t, err)
	for k, v := range kv {
		_, err = db.Exec(`INSERT INTO cursorDiskKV (key, value) VALUES (?, ?)`, k, v)
		require.NoError(t, err)
	}
}

func TestChatForCommit_HappyPathMultiDB(t *testing.T) {
	repo := t.TempDir()
	runGitAt(t, repo, nil, "init")
	runGitAt(t, repo, []string{
		"GIT_AUTHOR_NAME=T", "GIT_AUTHOR_EMAIL=t@e.com", "GIT_COMMITTER_NAME=T", "GIT_COMMITTER_EMAIL=t@e.com",
		"GIT_AUTHOR_DATE=2001-09-09T01:46:40+00:00", "GIT_COMMITTER_DATE=2001-09-09T01:46:40+00:00",
	}, "commit", "--allow-empty", "-m", "first")
	runGitAt(t, repo, []string{
		"GIT_AUTHOR_NAME=T", "GIT_AUTHOR_EMAIL=t@e.com", "GIT_COMMITTER_NAME=T", "GIT_COMMITTER_EMAIL=t@e.com",
		"GIT_AUTHOR_DATE=2001-09-09T02:46:40+00:00", "GIT_COMMITTER_DATE=2001-09-09T02:46:40+00:00",
	}, "commit", "--allow-empty", "-m", "second")

	out, err := exec.Command("git", "-C", repo, "rev-parse", "HEAD").Output()
	require.NoError(t, err)
	head := string(out[:len(out)-1])

	root := t.TempDir()
	wsA := filepath.Join(root, "wsA")
	wsB := filepath.Join(root, "wsB")
	makeWorkspaceDB(t, wsA, "file://"+repo, `{"allComposers":[{"composerId":"s1","name":"a","createdAt":1000003600000,"type":"chat"}]}`)
	makeWorkspaceDB(t, wsB, "file:///unrelated", `{"allComposers":[{"composerId":"s2","name":"b","createdAt":1000003600000,"type":"chat"}]}`)

	globalDB := filepath.Join(root, "global.vscdb")
	makeGlobalDB(t, globalDB, map[string]string{
		"composerData:s1": `{"fullConversationHeadersOnly":[{"bubbleId":"b1","type":1},{"bubbleId":"b2","type":2}]}`,
		"bubbleId:s1:b1":  `{"text":"q"}`,
		"bubbleId:s1:b2":  `{"text":"a"}`,
		"composerData:s2": `{"fullConversationHeadersOnly":[{"bubbleId":"c1","type":1},{"bubbleId":"c2","type":2}]}`,
		"bubbleId:s2:c1":  `{"text":"q2"}`,
		"bubbleId:s2:c2":  `{"text":"a2"}`,
	})

	result, err := ChatForCommit(context.Background(), repo, head, Options{
		ExtraRoots:   []string{root},
		GlobalDBPath: globalDB,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusComplete, result.DataQuality.Status)
	assert.Len(t, result.Messages, 4)
}
