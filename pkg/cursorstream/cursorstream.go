// Package cursorstream parses the Cursor-like backend family's stream
// format. It resembles pkg/claudestream's content_block_delta/result
// shape closely enough that the two vendors likely share ancestry, but
// is kept as an independent type (rather than a re-export) so the two
// protocols can diverge without a shared struct forcing lockstep
// changes.
package cursorstream

import (
	"encoding/json"
	"fmt"

	"github.com/jbohnslav/kingdom/pkg/ndjson"
	"github.com/jbohnslav/kingdom/pkg/streamframe"
)

type event struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Delta     *delta          `json:"delta,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Message   string          `json:"message,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
}

type delta struct {
	Kind string `json:"kind,omitempty"`
	Text string `json:"text,omitempty"`
}

const typeStreamEvent = "stream_event"

// ExtractFrame decodes one line of live stream output into a normalized
// frame, skipping anything it does not recognize. Like the Claude
// backend this family takes its shape from, some CLI versions wrap
// every event in a {"type":"stream_event","event":{...}} envelope
// instead of emitting it flat; both shapes must parse identically.
func ExtractFrame(line []byte) (*streamframe.Frame, bool) {
	var ev event
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, false
	}

	switch ev.Type {
	case typeStreamEvent:
		if len(ev.Event) == 0 {
			return nil, false
		}
		return ExtractFrame(ev.Event)
	case "session":
		if ev.SessionID == "" {
			return nil, false
		}
		return &streamframe.Frame{Kind: streamframe.Session, SessionToken: ev.SessionID}, true
	case "content_block_delta":
		if ev.Delta == nil || ev.Delta.Text == "" {
			return nil, false
		}
		if ev.Delta.Kind == "thinking" {
			return &streamframe.Frame{Kind: streamframe.Thinking, Text: ev.Delta.Text}, true
		}
		return &streamframe.Frame{Kind: streamframe.Token, Text: ev.Delta.Text}, true
	case "error":
		return &streamframe.Frame{Kind: streamframe.Error, Message: ev.Message}, true
	case "result":
		if ev.IsError {
			return &streamframe.Frame{Kind: streamframe.Error, Message: resultString(ev.Result)}, true
		}
		return &streamframe.Frame{Kind: streamframe.Status, Phase: "result"}, true
	default:
		return nil, false
	}
}

// ParseFinal reduces a member run's full captured output to its final
// reply text and, if present, a resumable session token.
func ParseFinal(stdout, stderr []byte, exitCode int) (text, sessionToken string, err error) {
	events := ndjson.Split(stdout)
	if len(events) == 0 {
		if exitCode != 0 {
			return "", "", fmt.Errorf("cursor: no parseable output, exit code %d: %s", exitCode, truncate(stderr))
		}
		return "", "", nil
	}

	var textOut string
	for _, raw := range events {
		var ev event
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		switch ev.Type {
		case "session":
			if ev.SessionID != "" {
				sessionToken = ev.SessionID
			}
		case "content_block_delta":
			if ev.Delta != nil && ev.Delta.Kind != "thinking" && ev.Delta.Text != "" {
				textOut += ev.Delta.Text
			}
		case "result":
			if ev.IsError {
				return textOut, sessionToken, fmt.Errorf("cursor: %s", resultString(ev.Result))
			}
			if s := resultString(ev.Result); s != "" {
				textOut = s
			}
		}
	}
	return textOut, sessionToken, nil
}

func resultString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func truncate(b []byte) string {
	const max = 500
	if len(b) > max {
		return string(b[:max]) + "…"
	}
	return string(b)
}
