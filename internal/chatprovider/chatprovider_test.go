package chatprovider

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workspaceFixture(t *testing.T, allComposersJSON string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workspace.vscdb")

	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE ItemTable (key TEXT PRIMARY KEY, value BLOB)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO ItemTable (key, value) VALUES (?, ?)`, sessionMetadataKey, allComposersJSON)
	require.NoError(t, err)

	return path
}

func globalFixture(t *testing.T, kv map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "global.vscdb")

	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE cursorDiskKV (key TEXT, value BLOB)`)
	require.NoError(t, err)
	for k, v := range kv {
		_, err = db.Exec(`INSERT INTO cursorDiskKV (key, value) VALUES (?, ?)`, k, v)
		require.NoError(t, err)
	}

	return path
}

func TestChatForWindow_FiltersBySessionCreatedAt(t *testing.T) {
	workspaceDB := workspaceFixture(t, `{"allComposers":[
		{"composerId":"s1","name":"In window","createdAt":1000,"type":"chat"},
		{"composerId":"s2","name":"Out of window","createdAt":9999999,"type":"chat"}
	]}`)

	globalDB := globalFixture(t, map[string]string{
		"composerData:s1": `{"fullConversationHeadersOnly":[{"bubbleId":"b1","type":1},{"bubbleId":"b2","type":2}]}`,
		"bubbleId:s1:b1":  `{"text":"hello"}`,
		"bubbleId:s1:b2":  `{"text":"hi there"}`,
	})

	messages, stats, err := ChatForWindow(context.Background(), workspaceDB, globalDB, 0, 2000)
	require.NoError(t, err)

	require.Len(t, messages, 2)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, RoleAssistant, messages[1].Role)
	assert.Equal(t, 2, stats.SessionsDiscovered)
	assert.Equal(t, 1, stats.SessionsInWindow)
	assert.Equal(t, 2, stats.BubblesFetched)
}

func TestChatForWindow_MissingBubbleIsSkipped(t *testing.T) {
	workspaceDB := workspaceFixture(t, `{"allComposers":[{"composerId":"s1","name":"s","createdAt":500,"type":"chat"}]}`)

	globalDB := globalFixture(t, map[string]string{
		"composerData:s1": `{"fullConversationHeadersOnly":[{"bubbleId":"missing","type":1}]}`,
	})

	messages, stats, err := ChatForWindow(context.Background(), workspaceDB, globalDB, 0, 1000)
	require.NoError(t, err)

	assert.Empty(t, messages)
	assert.Equal(t, 1, stats.BubblesMissing)
}

func TestChatForWindow_SortsByTimestampThenComposerThenHeaderIndex(t *testing.T) {
	workspaceDB := workspaceFixture(t, `{"allComposers":[
		{"composerId":"b","name":"later session, same ts","createdAt":1000,"type":"chat"},
		{"composerId":"a","name":"earlier session, same ts","createdAt":1000,"type":"chat"}
	]}`)

	globalDB := globalFixture(t, map[string]string{
		"composerData:a": `{"fullConversationHeadersOnly":[{"bubbleId":"b1","type":1}]}`,
		"composerData:b": `{"fullConversationHeadersOnly":[{"bubbleId":"b1","type":1}]}`,
		"bubbleId:a:b1":  `{"text":"from a"}`,
		"bubbleId:b:b1":  `{"text":"from b"}`,
	})

	messages, _, err := ChatForWindow(context.Background(), workspaceDB, globalDB, 0, 2000)
	require.NoError(t, err)

	require.Len(t, messages, 2)
	assert.Equal(t, "from a", messages[0].Content)
	assert.Equal(t, "from b", messages[1].Content)
}
