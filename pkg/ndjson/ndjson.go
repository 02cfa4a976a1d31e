// Package ndjson implements the auto-detection rule shared by every
// backend family's final-response parser: vendor output is either a
// single JSON document or newline-delimited JSON, and the two must not
// be distinguished by counting lines (a lone NDJSON event is still
// NDJSON).
package ndjson

import (
	"bufio"
	"bytes"
	"encoding/json"
)

// Split returns the individual JSON documents found in raw. It first
// attempts a strict single-document parse; if that fails, it splits raw
// into lines and keeps only the ones that parse as JSON, silently
// skipping blank or malformed lines.
func Split(raw []byte) []json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}

	var probe json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err == nil {
		return []json.RawMessage{probe}
	}

	var events []json.RawMessage
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev json.RawMessage
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events
}
