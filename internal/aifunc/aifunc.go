// Package aifunc extracts a generator's prompt, invokes the configured
// language model, and parses its response into a typed Section Result
// using a small finite-state parsing strategy keyed by the generator's
// parser tag.
package aifunc

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

// Name identifies one of the fixed set of section generators.
type Name string

const (
	GeneratorSummary           Name = "summary"
	GeneratorTechnicalSynopsis Name = "technical_synopsis"
	GeneratorAccomplishments   Name = "accomplishments"
	GeneratorFrustrations      Name = "frustrations"
	GeneratorToneMood          Name = "tone_mood"
	GeneratorDiscussionNotes   Name = "discussion_notes"
	GeneratorCommitMetadata    Name = "commit_metadata"
)

// ParserTag selects the parsing strategy for a generator's raw LM output.
type ParserTag string

const (
	ParserText           ParserTag = "text"
	ParserList           ParserTag = "list"
	ParserToneMood       ParserTag = "tone_mood"
	ParserCommitMetadata ParserTag = "commit_metadata"
)

// RegistryEntry is one generator's prompt documentation, parser strategy,
// and JSON key, replacing reflection over named generator functions.
type RegistryEntry struct {
	Name      Name
	PromptDoc string
	Parser    ParserTag
	JSONKey   string
}

// Registry is the fixed, ordered set of section generators the
// orchestrator drives per commit.
var Registry = []RegistryEntry{
	{Name: GeneratorSummary, Parser: ParserText, JSONKey: "summary", PromptDoc: summaryPromptDoc},
	{Name: GeneratorTechnicalSynopsis, Parser: ParserText, JSONKey: "technical_synopsis", PromptDoc: technicalSynopsisPromptDoc},
	{Name: GeneratorAccomplishments, Parser: ParserList, JSONKey: "accomplishments", PromptDoc: accomplishmentsPromptDoc},
	{Name: GeneratorFrustrations, Parser: ParserList, JSONKey: "frustrations", PromptDoc: frustrationsPromptDoc},
	{Name: GeneratorToneMood, Parser: ParserToneMood, JSONKey: "tone_mood", PromptDoc: toneMoodPromptDoc},
	{Name: GeneratorDiscussionNotes, Parser: ParserList, JSONKey: "discussion_notes", PromptDoc: discussionNotesPromptDoc},
	{Name: GeneratorCommitMetadata, Parser: ParserCommitMetadata, JSONKey: "commit_metadata", PromptDoc: commitMetadataPromptDoc},
}

const (
	summaryPromptDoc = "Summarise this commit's work in two or three plain-language sentences a teammate could skim."
	technicalSynopsisPromptDoc = "Write a technical synopsis of the change: what moved, what the approach was, any notable tradeoffs."
	accomplishmentsPromptDoc = "List concrete things accomplished in this commit, one per line."
	frustrationsPromptDoc = "List friction points, dead ends, or frustrations encountered while making this commit, one per line."
	toneMoodPromptDoc = "Describe the developer's tone and mood during this work as `Mood: <one phrase>` followed by `Indicators: <comma-separated cues>`."
	discussionNotesPromptDoc = "Extract notable discussion points from the chat transcript relevant to this commit, one per line."
	commitMetadataPromptDoc = "Return any structured metadata about this commit worth surfacing, as a flat JSON object of string to string."
)

// SectionResult is the tagged output of one generator. Only the fields
// relevant to Kind are populated; Error explains why a fallback default
// was used, if any.
type SectionResult struct {
	Kind       Name              `json:"kind"`
	Text       string            `json:"text,omitempty"`
	Items      []string          `json:"items,omitempty"`
	Mood       string            `json:"mood,omitempty"`
	Indicators []string          `json:"indicators,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// LMClient is the contract by which a prompt-plus-context is handed to a
// language model and a text response returned. The LM's own reasoning and
// concrete client wiring are out of scope; this is the hand-off boundary.
type LMClient interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

const contextMarker = "JSON_CONTEXT:"

// BuildPrompt concatenates the generator's docstring, the JSON_CONTEXT
// marker, and the pretty-printed context.
func BuildPrompt(entry RegistryEntry, journalContext any) (string, error) {
	contextJSON, err := json.MarshalIndent(journalContext, "", "  ")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(entry.PromptDoc)
	b.WriteString("\n\n")
	b.WriteString(contextMarker)
	b.WriteString("\n")
	b.Write(contextJSON)
	return b.String(), nil
}

// Execute runs one generator end to end: builds the prompt, invokes the
// LM, and parses the response into a SectionResult. LM failures and empty
// responses never propagate as errors; they produce a typed, empty
// default with an explanatory Error note instead.
func Execute(ctx context.Context, client LMClient, entry RegistryEntry, journalContext any) SectionResult {
	prompt, err := BuildPrompt(entry, journalContext)
	if err != nil {
		return defaultResult(entry, "building prompt: "+err.Error())
	}

	response, err := client.Invoke(ctx, prompt)
	if err != nil {
		return defaultResult(entry, "LM invocation failed: "+err.Error())
	}
	if strings.TrimSpace(response) == "" {
		return defaultResult(entry, "LM returned an empty response")
	}

	return parse(entry, response)
}

func defaultResult(entry RegistryEntry, errMsg string) SectionResult {
	r := SectionResult{Kind: entry.Name, Error: errMsg}
	switch entry.Parser {
	case ParserList:
		r.Items = []string{}
	case ParserCommitMetadata:
		r.Metadata = map[string]string{}
	}
	return r
}

func parse(entry RegistryEntry, response string) SectionResult {
	content := unfence(response)

	switch entry.Parser {
	case ParserText:
		return parseText(entry, content)
	case ParserList:
		return parseList(entry, content)
	case ParserToneMood:
		return parseToneMood(entry, content)
	case ParserCommitMetadata:
		return parseCommitMetadata(entry, content)
	default:
		return defaultResult(entry, "unknown parser tag")
	}
}

func parseText(entry RegistryEntry, content string) SectionResult {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil {
		if v, ok := obj[entry.JSONKey]; ok {
			if s, ok := v.(string); ok {
				return SectionResult{Kind: entry.Name, Text: s}
			}
		}
	}
	return SectionResult{Kind: entry.Name, Text: strings.TrimSpace(content)}
}

func parseList(entry RegistryEntry, content string) SectionResult {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil {
		if v, ok := obj[entry.JSONKey]; ok {
			if arr, ok := v.([]any); ok {
				return SectionResult{Kind: entry.Name, Items: toStringSlice(arr)}
			}
		}
	}

	var items []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line != "" {
			items = append(items, strings.TrimSpace(line))
		}
	}
	if items == nil {
		items = []string{}
	}
	return SectionResult{Kind: entry.Name, Items: items}
}

var moodLineRe = regexp.MustCompile(`(?i)^mood:\s*(.+)$`)
var indicatorsLineRe = regexp.MustCompile(`(?i)^indicators:\s*(.+)$`)

func parseToneMood(entry RegistryEntry, content string) SectionResult {
	var obj struct {
		Mood       string   `json:"mood"`
		Indicators []string `json:"indicators"`
	}
	if err := json.Unmarshal([]byte(content), &obj); err == nil && obj.Mood != "" {
		return SectionResult{Kind: entry.Name, Mood: obj.Mood, Indicators: obj.Indicators}
	}

	var mood string
	var indicators []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if m := moodLineRe.FindStringSubmatch(line); m != nil {
			mood = strings.TrimSpace(m[1])
		}
		if m := indicatorsLineRe.FindStringSubmatch(line); m != nil {
			for _, part := range strings.Split(m[1], ",") {
				part = strings.TrimSpace(part)
				if part != "" {
					indicators = append(indicators, part)
				}
			}
		}
	}
	return SectionResult{Kind: entry.Name, Mood: mood, Indicators: indicators}
}

func parseCommitMetadata(entry RegistryEntry, content string) SectionResult {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil {
		out := map[string]string{}
		for k, v := range obj {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
		return SectionResult{Kind: entry.Name, Metadata: out}
	}
	return SectionResult{Kind: entry.Name, Metadata: map[string]string{}}
}

func toStringSlice(v []any) []string {
	out := make([]string, 0, len(v))
	for _, item := range v {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json|python)?\\s*\\n(.*?)\\n```")

// unfence recognises fenced code blocks tagged json, python, or untagged,
// and returns the first block's inner content. Responses with no fence
// are returned unchanged. Malformed fenced content is handled by the
// caller falling back to raw-text parsing.
func unfence(response string) string {
	if m := fencedBlockRe.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(response)
}
