// Package codexstream parses the Codex-like backend family's always-NDJSON
// event stream: item.completed events carrying agent_message/reasoning
// payloads, and a terminal turn.completed/turn.failed event.
package codexstream

import (
	"encoding/json"
	"fmt"

	"github.com/jbohnslav/kingdom/pkg/ndjson"
	"github.com/jbohnslav/kingdom/pkg/streamframe"
)

type event struct {
	Type     string          `json:"type"`
	ThreadID string          `json:"thread_id,omitempty"`
	Item     json.RawMessage `json:"item,omitempty"`
	Error    *codexError     `json:"error,omitempty"`
}

type item struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type codexError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ExtractFrame decodes one line of live stream output into a normalized
// frame. turn.started and item.started carry nothing worth displaying
// and skip like any other unrecognized event.
func ExtractFrame(line []byte) (*streamframe.Frame, bool) {
	var ev event
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, false
	}

	switch ev.Type {
	case "thread.started":
		if ev.ThreadID == "" {
			return nil, false
		}
		return &streamframe.Frame{Kind: streamframe.Session, SessionToken: ev.ThreadID}, true
	case "item.completed":
		it, ok := decodeItem(ev.Item)
		if !ok {
			return nil, false
		}
		switch it.Type {
		case "agent_message":
			return &streamframe.Frame{Kind: streamframe.Token, Text: it.Text}, true
		case "reasoning":
			return &streamframe.Frame{Kind: streamframe.Thinking, Text: it.Text}, true
		default:
			return nil, false
		}
	case "turn.completed":
		return &streamframe.Frame{Kind: streamframe.Status, Phase: "turn.completed"}, true
	case "turn.failed":
		return &streamframe.Frame{Kind: streamframe.Error, Message: errorMessage(ev.Error, "turn failed")}, true
	case "error":
		return &streamframe.Frame{Kind: streamframe.Error, Message: errorMessage(ev.Error, "unknown error")}, true
	default:
		return nil, false
	}
}

// ParseFinal reduces a member run's full captured NDJSON output to the
// last agent_message text and, if a thread.started event carried one, a
// resumable session token.
func ParseFinal(stdout, stderr []byte, exitCode int) (text, sessionToken string, err error) {
	events := ndjson.Split(stdout)
	if len(events) == 0 {
		if exitCode != 0 {
			return "", "", fmt.Errorf("codex: no parseable output, exit code %d: %s", exitCode, truncate(stderr))
		}
		return "", "", nil
	}

	var textOut string
	var failed *codexError
	for _, raw := range events {
		var ev event
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		switch ev.Type {
		case "thread.started":
			if ev.ThreadID != "" {
				sessionToken = ev.ThreadID
			}
		case "item.completed":
			if it, ok := decodeItem(ev.Item); ok && it.Type == "agent_message" {
				textOut = it.Text
			}
		case "turn.failed", "error":
			failed = ev.Error
		}
	}
	if failed != nil {
		return textOut, sessionToken, fmt.Errorf("codex: %s", errorMessage(failed, "turn failed"))
	}
	return textOut, sessionToken, nil
}

func decodeItem(raw json.RawMessage) (item, bool) {
	if len(raw) == 0 {
		return item{}, false
	}
	var it item
	if err := json.Unmarshal(raw, &it); err != nil {
		return item{}, false
	}
	return it, true
}

func errorMessage(e *codexError, fallback string) string {
	if e == nil || e.Message == "" {
		return fallback
	}
	return e.Message
}

func truncate(b []byte) string {
	const max = 500
	if len(b) > max {
		return string(b[:max]) + "…"
	}
	return string(b)
}
