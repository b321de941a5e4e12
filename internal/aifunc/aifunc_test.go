package aifunc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	response string
	err      error
}

func (f fakeClient) Invoke(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func entryFor(t *testing.T, name Name) RegistryEntry {
	t.Helper()
	for _, e := range Registry {
		if e.Name == name {
			return e
		}
	}
	t.Fatalf("no registry entry for %s", name)
	return RegistryEntry{}
}

func TestExecute_TextGenerator_JSONResponse(t *testing.T) {
	entry := entryFor(t, GeneratorSummary)
	client := fakeClient{response: `{"summary": "fixed a bug"}`}

	result := Execute(context.Background(), client, entry, map[string]any{"git": "x"})

	assert.Equal(t, "fixed a bug", result.Text)
	assert.Empty(t, result.Error)
}

func TestExecute_TextGenerator_RawTextFallback(t *testing.T) {
	entry := entryFor(t, GeneratorSummary)
	client := fakeClient{response: "just plain prose"}

	result := Execute(context.Background(), client, entry, map[string]any{})

	assert.Equal(t, "just plain prose", result.Text)
}

func TestExecute_ListGenerator_SplitsLines(t *testing.T) {
	entry := entryFor(t, GeneratorAccomplishments)
	client := fakeClient{response: "- did thing one\n- did thing two\n\n"}

	result := Execute(context.Background(), client, entry, map[string]any{})

	assert.Equal(t, []string{"did thing one", "did thing two"}, result.Items)
}

func TestExecute_ListGenerator_JSONArray(t *testing.T) {
	entry := entryFor(t, GeneratorFrustrations)
	client := fakeClient{response: `{"frustrations": ["flaky test", "slow CI"]}`}

	result := Execute(context.Background(), client, entry, map[string]any{})

	assert.Equal(t, []string{"flaky test", "slow CI"}, result.Items)
}

func TestExecute_ToneMood_LabelledLines(t *testing.T) {
	entry := entryFor(t, GeneratorToneMood)
	client := fakeClient{response: "Mood: frustrated\nIndicators: long debugging, repeated failures"}

	result := Execute(context.Background(), client, entry, map[string]any{})

	assert.Equal(t, "frustrated", result.Mood)
	assert.Equal(t, []string{"long debugging", "repeated failures"}, result.Indicators)
}

func TestExecute_CommitMetadata_FallsBackToEmptyMap(t *testing.T) {
	entry := entryFor(t, GeneratorCommitMetadata)
	client := fakeClient{response: "not json at all"}

	result := Execute(context.Background(), client, entry, map[string]any{})

	assert.Equal(t, map[string]string{}, result.Metadata)
}

func TestExecute_LMFailureProducesTypedFallback(t *testing.T) {
	entry := entryFor(t, GeneratorAccomplishments)
	client := fakeClient{err: errors.New("connection refused")}

	result := Execute(context.Background(), client, entry, map[string]any{})

	assert.Equal(t, []string{}, result.Items)
	assert.NotEmpty(t, result.Error)
}

func TestExecute_FencedJSONResponse(t *testing.T) {
	entry := entryFor(t, GeneratorSummary)
	client := fakeClient{response: "```json\n{\"summary\": \"fenced result\"}\n```"}

	result := Execute(context.Background(), client, entry, map[string]any{})

	assert.Equal(t, "fenced result", result.Text)
}

func TestBuildPrompt_ContainsMarkerAndDoc(t *testing.T) {
	entry := entryFor(t, GeneratorSummary)

	prompt, err := BuildPrompt(entry, map[string]any{"git": map[string]any{"commit_hash": "abc"}})
	require.NoError(t, err)

	assert.Contains(t, prompt, entry.PromptDoc)
	assert.Contains(t, prompt, "JSON_CONTEXT:")
	assert.Contains(t, prompt, "abc")
}
