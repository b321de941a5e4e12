// Package chatprovider enumerates chat sessions and messages from a pair
// of Cursor IDE databases within a commit's time window.
package chatprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/cursordb"
)

const sessionMetadataKey = "composer.composerData"

// SoftPerformanceBudget is the target wall-clock time for a single
// chat_for_window call; exceeding it is recorded, not enforced.
const SoftPerformanceBudget = 500 * time.Millisecond

// Role is a normalized chat participant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is one chat session recorded in the workspace database.
type Session struct {
	ComposerID      string `json:"composerId"`
	Name            string `json:"name"`
	CreatedAtMs     int64  `json:"createdAt"`
	LastUpdatedAtMs int64  `json:"lastUpdatedAt"`
	Type            string `json:"type"`
}

// Message is one chat bubble, flattened with its owning session's identity
// and timestamp (bubbles themselves carry no timestamp).
type Message struct {
	Role        Role
	Content     string
	TimestampMs int64
	SessionID   string
	BubbleID    string
	SessionName string
	headerIndex int
}

// Stats records the per-call telemetry attributes for chat_for_window.
type Stats struct {
	SessionsDiscovered int
	SessionsInWindow   int
	BubblesFetched     int
	BubblesMissing     int
	DurationMs         int64
	Exceeded500ms      bool
}

type allComposersDoc struct {
	AllComposers []Session `json:"allComposers"`
}

type headerEntry struct {
	BubbleID string `json:"bubbleId"`
	Type     int    `json:"type"`
}

type headersDoc struct {
	FullConversationHeadersOnly []headerEntry `json:"fullConversationHeadersOnly"`
}

type bubbleDoc struct {
	Text string `json:"text"`
}

// ChatForWindow reads the workspace DB's session metadata, filters to
// sessions created inside [startMs, endMs], then reads each surviving
// session's message headers and bubbles from the global DB. It returns
// messages ordered by (timestamp, composerId, header_index).
func ChatForWindow(ctx context.Context, workspaceDB, globalDB string, startMs, endMs int64) ([]Message, Stats, error) {
	begin := time.Now()

	sessions, err := readSessions(ctx, workspaceDB)
	if err != nil {
		return nil, Stats{}, err
	}

	var inWindow []Session
	for _, s := range sessions {
		if s.CreatedAtMs >= startMs && s.CreatedAtMs <= endMs {
			inWindow = append(inWindow, s)
		}
	}

	var messages []Message
	var bubblesFetched, bubblesMissing int

	for _, s := range inWindow {
		headers, err := readHeaders(ctx, globalDB, s.ComposerID)
		if err != nil {
			return nil, Stats{}, err
		}

		for i, h := range headers {
			text, found, err := readBubble(ctx, globalDB, s.ComposerID, h.BubbleID)
			if err != nil {
				return nil, Stats{}, err
			}
			if !found {
				bubblesMissing++
				continue
			}
			bubblesFetched++

			messages = append(messages, Message{
				Role:        roleFromTag(h.Type),
				Content:     text,
				TimestampMs: s.CreatedAtMs,
				SessionID:   s.ComposerID,
				BubbleID:    h.BubbleID,
				SessionName: s.Name,
				headerIndex: i,
			})
		}
	}

	sort.SliceStable(messages, func(i, j int) bool {
		a, b := messages[i], messages[j]
		if a.TimestampMs != b.TimestampMs {
			return a.TimestampMs < b.TimestampMs
		}
		if a.SessionID != b.SessionID {
			return a.SessionID < b.SessionID
		}
		return a.headerIndex < b.headerIndex
	})

	duration := time.Since(begin)
	stats := Stats{
		SessionsDiscovered: len(sessions),
		SessionsInWindow:   len(inWindow),
		BubblesFetched:     bubblesFetched,
		BubblesMissing:     bubblesMissing,
		DurationMs:         duration.Milliseconds(),
		Exceeded500ms:      duration > SoftPerformanceBudget,
	}

	return messages, stats, nil
}

func readSessions(ctx context.Context, workspaceDB string) ([]Session, error) {
	rows, err := cursordb.Query(ctx, workspaceDB, "SELECT value FROM ItemTable WHERE key = ?", sessionMetadataKey)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	raw, err := blobBytes(rows[0][0])
	if err != nil {
		return nil, fmt.Errorf("reading session metadata blob: %w", err)
	}

	var doc allComposersDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing session metadata JSON: %w", err)
	}

	return doc.AllComposers, nil
}

func readHeaders(ctx context.Context, globalDB, sessionID string) ([]headerEntry, error) {
	key := fmt.Sprintf("composerData:%s", sessionID)
	rows, err := cursordb.Query(ctx, globalDB, "SELECT value FROM cursorDiskKV WHERE key = ?", key)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	raw, err := blobBytes(rows[0][0])
	if err != nil {
		return nil, fmt.Errorf("reading headers blob for session %s: %w", sessionID, err)
	}

	var doc headersDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing headers JSON for session %s: %w", sessionID, err)
	}

	return doc.FullConversationHeadersOnly, nil
}

func readBubble(ctx context.Context, globalDB, sessionID, bubbleID string) (string, bool, error) {
	key := fmt.Sprintf("bubbleId:%s:%s", sessionID, bubbleID)
	rows, err := cursordb.Query(ctx, globalDB, "SELECT value FROM cursorDiskKV WHERE key = ?", key)
	if err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}

	raw, err := blobBytes(rows[0][0])
	if err != nil {
		return "", false, fmt.Errorf("reading bubble blob %s: %w", key, err)
	}

	var doc bubbleDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", false, fmt.Errorf("parsing bubble JSON %s: %w", key, err)
	}

	return doc.Text, true, nil
}

func blobBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, fmt.Errorf("unexpected blob type %T", v)
	}
}

func roleFromTag(tag int) Role {
	if tag == 2 {
		return RoleAssistant
	}
	return RoleUser
}
