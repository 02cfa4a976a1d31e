package thread

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jbohnslav/kingdom/internal/frontmatter"
)

// SeqWidth is the minimum zero-pad width for sequence numbers in
// message file names (spec.md §6: "zero-padded to ≥4 digits").
const SeqWidth = 4

// AllSentinel is the `to` header value meaning every declared member.
const AllSentinel = "all"

// Message is one parsed thread message.
type Message struct {
	Seq       int
	From      string
	To        string
	Timestamp time.Time
	Refs      []string
	Body      string

	// Path is the absolute file path this message was read from; empty
	// for a Message not yet persisted.
	Path string
}

// ToNames expands the `to` header against the thread's declared members:
// "all" becomes every declared member, a comma-separated list becomes
// its parts, trimmed.
func (m Message) ToNames(declaredMembers []string) []string {
	to := strings.TrimSpace(m.To)
	if to == AllSentinel {
		out := make([]string, len(declaredMembers))
		copy(out, declaredMembers)
		return out
	}
	parts := strings.Split(to, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var fileNamePattern = regexp.MustCompile(`^(\d+)-(.+)\.md$`)

// fileName composes a message's on-disk name: sequence number
// zero-padded, sender name, ".md".
func fileName(seq int, sender string) string {
	return fmt.Sprintf("%0*d-%s.md", SeqWidth, seq, sanitizeSender(sender))
}

// sanitizeSender makes a sender name path-safe (spec.md §3: "sender
// name is path-safe").
func sanitizeSender(sender string) string {
	var b strings.Builder
	for _, r := range sender {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

// parseFileName extracts the sequence number and sender from a message
// file's base name. ok is false for names that don't match the pattern
// (e.g. thread.json, stream files).
func parseFileName(base string) (seq int, sender string, ok bool) {
	m := fileNamePattern.FindStringSubmatch(base)
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return n, m[2], true
}

// messageToDoc renders a Message to a frontmatter.Document ready for
// Render.
func messageToDoc(m Message) *frontmatter.Document {
	doc := &frontmatter.Document{Body: m.Body}
	doc.Set("from", m.From)
	doc.Set("to", m.To)
	doc.Set("timestamp", m.Timestamp.UTC().Format(time.RFC3339))
	if len(m.Refs) > 0 {
		doc.Set("refs", "["+strings.Join(m.Refs, ", ")+"]")
	}
	return doc
}

// docToMessage parses a frontmatter.Document plus its on-disk name into
// a Message.
func docToMessage(path string, seq int, sender string, doc *frontmatter.Document) (Message, error) {
	from, _ := doc.Get("from")
	to, _ := doc.Get("to")
	tsRaw, _ := doc.Get("timestamp")

	var ts time.Time
	if tsRaw != "" {
		parsed, err := time.Parse(time.RFC3339, tsRaw)
		if err != nil {
			return Message{}, fmt.Errorf("thread: %s: invalid timestamp %q: %w", filepath.Base(path), tsRaw, err)
		}
		ts = parsed
	}

	refs, _ := doc.GetList("refs")

	if from == "" {
		from = sender
	}

	return Message{
		Seq:       seq,
		From:      from,
		To:        to,
		Timestamp: ts,
		Refs:      refs,
		Body:      doc.Body,
		Path:      path,
	}, nil
}
