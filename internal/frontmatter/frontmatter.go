// Package frontmatter reads and writes the "YAML-ish header + body" file
// format shared by thread messages, ticket/design documents, and (for
// uniformity only — the config loader itself accepts JSON) other
// structured text files in Kingdom.
//
// A file looks like:
//
//	---
//	from: claude
//	to: king
//	timestamp: 2026-03-01T12:00:00Z
//	refs: [design.md, ticket-12.md]
//	---
//
//	body text starts here...
package frontmatter

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fence is the header delimiter line.
const Fence = "---"

// Document is a parsed frontmatter file: an ordered header plus a body.
type Document struct {
	// Header preserves key order and unknown keys verbatim.
	Header []HeaderField
	Body   string
}

// HeaderField is a single `key: value` header line.
type HeaderField struct {
	Key   string
	Value string
}

// ParseError names the offending line of a malformed header.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("frontmatter: line %d: %s", e.Line, e.Msg)
}

// Get returns the value of the first header field with the given key.
func (d *Document) Get(key string) (string, bool) {
	for _, f := range d.Header {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// GetList returns a header value as a comma-separated or YAML-flow-sequence
// list (the only structured value shape the header ever carries, used for
// the `refs` field).
func (d *Document) GetList(key string) ([]string, bool) {
	raw, ok := d.Get(key)
	if !ok || raw == "" {
		return nil, ok
	}
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		var items []string
		if err := yaml.Unmarshal([]byte(raw), &items); err == nil {
			return items, true
		}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

// Set overwrites (or appends) a header field, preserving the position of
// an existing key.
func (d *Document) Set(key, value string) {
	for i := range d.Header {
		if d.Header[i].Key == key {
			d.Header[i].Value = value
			return
		}
	}
	d.Header = append(d.Header, HeaderField{Key: key, Value: value})
}

// Parse reads a frontmatter document from raw bytes.
//
// The very first line must be the fence. Header lines are `key: value`
// pairs; unknown keys are preserved verbatim and never cause a failure —
// only the caller (e.g. the thread store) judges which keys it
// recognizes. Parse fails on an empty input, a first line that is not
// the fence, a header line that is not a `key: value` pair, and an
// unterminated fence (EOF reached before the closing `---`).
func Parse(raw []byte) (*Document, error) {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	lineNo := 0
	if !scanner.Scan() {
		return nil, &ParseError{Line: 0, Msg: "empty file, expected fence"}
	}
	lineNo++
	if strings.TrimSpace(scanner.Text()) != Fence {
		return nil, &ParseError{Line: lineNo, Msg: "first line must be the `---` fence"}
	}

	doc := &Document{}
	closed := false
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == Fence {
			closed = true
			break
		}
		key, value, err := parseHeaderLine(line, lineNo)
		if err != nil {
			return nil, err
		}
		doc.Header = append(doc.Header, HeaderField{Key: key, Value: value})
	}
	if !closed {
		return nil, &ParseError{Line: lineNo, Msg: "unterminated fence: reached EOF before closing `---`"}
	}

	// A single blank separator line is conventional but not required.
	// The body is the lines after the fence (minus that one leading blank
	// line) joined with "\n": a final trailing newline and any "\r" at a
	// line end are not kept.
	var body bytes.Buffer
	first := true
	for scanner.Scan() {
		if first {
			first = false
			if scanner.Text() == "" {
				continue
			}
		} else {
			body.WriteByte('\n')
		}
		body.WriteString(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	doc.Body = body.String()
	return doc, nil
}

func parseHeaderLine(line string, lineNo int) (key, value string, err error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", "", nil
	}
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", &ParseError{Line: lineNo, Msg: fmt.Sprintf("malformed header line %q: missing `:`", line)}
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	if key == "" {
		return "", "", &ParseError{Line: lineNo, Msg: fmt.Sprintf("malformed header line %q: empty key", line)}
	}
	return key, value, nil
}

// Render writes the document back to bytes: fence, header lines in order,
// fence, blank line, body.
func Render(doc *Document) []byte {
	var buf bytes.Buffer
	buf.WriteString(Fence)
	buf.WriteByte('\n')
	for _, f := range doc.Header {
		if f.Key == "" {
			continue
		}
		buf.WriteString(f.Key)
		buf.WriteString(": ")
		buf.WriteString(f.Value)
		buf.WriteByte('\n')
	}
	buf.WriteString(Fence)
	buf.WriteByte('\n')
	buf.WriteByte('\n')
	buf.WriteString(doc.Body)
	return buf.Bytes()
}
