// Package acpstream parses the generic Agent Client Protocol family's
// output: JSON-RPC 2.0 notifications, one per line, carrying
// "session/update" method calls. Unlike the vendor-specific families,
// this one leans on github.com/coder/acp-go-sdk's own typed
// SessionNotification/ContentBlock structs for the params payload
// rather than hand-rolling a shape that would just re-derive what the
// SDK already exports. The bidirectional Connection type in that SDK is
// not used here — the council's Member runner owns the subprocess as a
// non-interactive, single-shot batch invocation, so only decoding (not
// the request/response handshake) applies.
package acpstream

import (
	"encoding/json"
	"fmt"

	acp "github.com/coder/acp-go-sdk"
	"github.com/jbohnslav/kingdom/pkg/ndjson"
	"github.com/jbohnslav/kingdom/pkg/streamframe"
)

type envelope struct {
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Message string `json:"message"`
}

const methodSessionUpdate = "session/update"

// ExtractFrame decodes one line of ACP JSON-RPC output into a normalized
// frame. Only session/update notifications and top-level error envelopes
// carry anything worth surfacing; everything else (permission requests,
// other methods this batch runner never answers) skips silently.
func ExtractFrame(line []byte) (*streamframe.Frame, bool) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, false
	}
	if env.Error != nil {
		return &streamframe.Frame{Kind: streamframe.Error, Message: env.Error.Message}, true
	}
	if env.Method != methodSessionUpdate || len(env.Params) == 0 {
		return nil, false
	}

	var note acp.SessionNotification
	if err := json.Unmarshal(env.Params, &note); err != nil {
		return nil, false
	}
	return frameFromUpdate(note)
}

func frameFromUpdate(note acp.SessionNotification) (*streamframe.Frame, bool) {
	switch {
	case note.Update.AgentMessageChunk != nil && note.Update.AgentMessageChunk.Content.Text != nil:
		text := note.Update.AgentMessageChunk.Content.Text.Text
		if text == "" {
			return nil, false
		}
		return &streamframe.Frame{Kind: streamframe.Token, Text: text}, true
	case note.Update.AgentThoughtChunk != nil && note.Update.AgentThoughtChunk.Content.Text != nil:
		text := note.Update.AgentThoughtChunk.Content.Text.Text
		if text == "" {
			return nil, false
		}
		return &streamframe.Frame{Kind: streamframe.Thinking, Text: text}, true
	default:
		if note.SessionId != "" {
			return &streamframe.Frame{Kind: streamframe.Session, SessionToken: string(note.SessionId)}, true
		}
		return nil, false
	}
}

// ParseFinal accumulates every agent_message_chunk across the captured
// output into the final reply text, and records the last session id seen
// as the resumable token.
func ParseFinal(stdout, stderr []byte, exitCode int) (text, sessionToken string, err error) {
	lines := ndjson.Split(stdout)
	if len(lines) == 0 {
		if exitCode != 0 {
			return "", "", fmt.Errorf("acp: no parseable output, exit code %d: %s", exitCode, truncate(stderr))
		}
		return "", "", nil
	}

	var textOut string
	var failure string
	for _, raw := range lines {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		if env.Error != nil {
			failure = env.Error.Message
			continue
		}
		if env.Method != methodSessionUpdate || len(env.Params) == 0 {
			continue
		}
		var note acp.SessionNotification
		if err := json.Unmarshal(env.Params, &note); err != nil {
			continue
		}
		if note.SessionId != "" {
			sessionToken = string(note.SessionId)
		}
		if note.Update.AgentMessageChunk != nil && note.Update.AgentMessageChunk.Content.Text != nil {
			textOut += note.Update.AgentMessageChunk.Content.Text.Text
		}
	}
	if failure != "" {
		return textOut, sessionToken, fmt.Errorf("acp: %s", failure)
	}
	return textOut, sessionToken, nil
}

func truncate(b []byte) string {
	const max = 500
	if len(b) > max {
		return string(b[:max]) + "…"
	}
	return string(b)
}
