// Package claudestream parses the Claude Code CLI's stream-json protocol:
// NDJSON events during a run, a terminal "result" event carrying the
// canonical reply. Types here are a deliberately narrowed slice of the
// vendor's actual message shape — only the fields the council cares
// about (text, thinking, session id, error) are decoded.
package claudestream

import (
	"encoding/json"
	"fmt"

	"github.com/jbohnslav/kingdom/pkg/ndjson"
	"github.com/jbohnslav/kingdom/pkg/streamframe"
)

const (
	typeSystem      = "system"
	typeAssistant   = "assistant"
	typeResult      = "result"
	typeStreamEvent = "stream_event"

	blockText     = "text"
	blockThinking = "thinking"
)

type event struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Message   *assistantBlock `json:"message,omitempty"`
	Delta     *delta          `json:"delta,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Subtype   string          `json:"subtype,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
}

type assistantBlock struct {
	Content []contentBlock `json:"content,omitempty"`
}

type contentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`
}

type delta struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// ExtractFrame decodes one line of live stream output into a normalized
// frame. Unknown event types, and events carrying nothing the council
// displays, skip silently rather than erroring — a malformed or
// unrecognized line must never abort the stream.
//
// Claude CLI runs started with --include-partial-messages wrap every
// token/thinking/result event in a {"type":"stream_event","event":{...}}
// envelope rather than emitting it flat. Both shapes must parse to the
// same frames, since which one a given CLI version emits is not
// something this package controls.
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
	case typeSystem:
		if ev.SessionID != "" {
			return &streamframe.Frame{Kind: streamframe.Session, SessionToken: ev.SessionID}, true
		}
		return nil, false
	case "content_block_delta":
		if ev.Delta == nil || ev.Delta.Text == "" {
			return nil, false
		}
		if ev.Delta.Type == blockThinking || ev.Delta.Type == "thinking_delta" {
			return &streamframe.Frame{Kind: streamframe.Thinking, Text: ev.Delta.Text}, true
		}
		return &streamframe.Frame{Kind: streamframe.Token, Text: ev.Delta.Text}, true
	case typeAssistant:
		if ev.Message == nil {
			return nil, false
		}
		for _, block := range ev.Message.Content {
			switch block.Type {
			case blockText:
				if block.Text != "" {
					return &streamframe.Frame{Kind: streamframe.Token, Text: block.Text}, true
				}
			case blockThinking:
				if block.Thinking != "" {
					return &streamframe.Frame{Kind: streamframe.Thinking, Text: block.Thinking}, true
				}
			}
		}
		return nil, false
	case typeResult:
		if ev.IsError {
			return &streamframe.Frame{Kind: streamframe.Error, Message: resultString(ev.Result)}, true
		}
		return &streamframe.Frame{Kind: streamframe.Status, Phase: "result"}, true
	default:
		return nil, false
	}
}

// ParseFinal reduces a member run's full captured output to its
// canonical reply text and (if present) a resumable session token.
func ParseFinal(stdout, stderr []byte, exitCode int) (text, sessionToken string, err error) {
	events := ndjson.Split(stdout)
	if len(events) == 0 {
		if exitCode != 0 {
			return "", "", fmt.Errorf("claude: no parseable output, exit code %d: %s", exitCode, truncate(stderr))
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
		case typeSystem:
			if ev.SessionID != "" {
				sessionToken = ev.SessionID
			}
		case typeAssistant:
			if ev.Message == nil {
				continue
			}
			for _, block := range ev.Message.Content {
				if block.Type == blockText && block.Text != "" {
					textOut = block.Text
				}
			}
		case typeResult:
			if ev.IsError {
				return textOut, sessionToken, fmt.Errorf("claude: %s", resultString(ev.Result))
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
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Text
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
