package thread

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jbohnslav/kingdom/internal/frontmatter"
)

// addMessageRetries bounds add_message's exclusive-create collision
// retry loop (spec.md §4.4: "retry up to a bounded number of times
// (≥10)").
const addMessageRetries = 16

// createThreadRetries bounds create_thread's slug-collision retry loop.
const createThreadRetries = 10

const slugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
const slugLength = 8

// Metadata is the non-authoritative performance hint written alongside
// a thread's messages: declared members, phase, creation time. The
// thread's actual state is always derived from the message files
// themselves (spec.md §3).
type Metadata struct {
	Members   []string  `json:"members"`
	Phase     string    `json:"phase"`
	CreatedAt time.Time `json:"created_at"`
}

const metadataFileName = "thread.json"

// Store operates on threads rooted under a single branch's threads
// directory, e.g. <state>/branches/<branch>/threads/.
type Store struct {
	root string
	rng  *rand.Rand
}

// NewStore returns a Store rooted at branchThreadsDir. The directory is
// created lazily on first write.
func NewStore(branchThreadsDir string) *Store {
	return &Store{
		root: branchThreadsDir,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ThreadRoot exposes a thread's directory so the Watch loop can tail it.
func (s *Store) ThreadRoot(threadID string) string {
	return filepath.Join(s.root, threadID)
}

// CreateThread allocates a fresh directory with a short random slug,
// writes the metadata file, and returns the new thread id. Slug
// collisions are retried with a fresh slug.
func (s *Store) CreateThread(members []string, phase string) (string, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("thread: create branch root: %w", err)
	}

	for attempt := 0; attempt < createThreadRetries; attempt++ {
		id := s.newSlug()
		dir := filepath.Join(s.root, id)
		if err := os.Mkdir(dir, 0o755); err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", fmt.Errorf("thread: create thread directory: %w", err)
		}

		meta := Metadata{Members: members, Phase: phase, CreatedAt: time.Now().UTC()}
		if err := writeMetadata(dir, meta); err != nil {
			return "", err
		}
		return id, nil
	}
	return "", ErrThreadCollision
}

func (s *Store) newSlug() string {
	b := make([]byte, slugLength)
	for i := range b {
		b[i] = slugAlphabet[s.rng.Intn(len(slugAlphabet))]
	}
	return string(b)
}

func writeMetadata(dir string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("thread: marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFileName), data, 0o644); err != nil {
		return fmt.Errorf("thread: write metadata: %w", err)
	}
	return nil
}

// ReadMetadata loads a thread's non-authoritative metadata file.
func (s *Store) ReadMetadata(threadID string) (Metadata, error) {
	data, err := os.ReadFile(filepath.Join(s.ThreadRoot(threadID), metadataFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, ErrThreadNotFound
		}
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("thread: parse metadata: %w", err)
	}
	return meta, nil
}

// AddMessage atomically appends a new message to threadID: it computes
// the next sequence number, composes a file name, and creates the file
// with exclusive-create semantics so concurrent writers can never
// collide. On a name collision it recomputes the next sequence number
// and retries, bounded by addMessageRetries.
func (s *Store) AddMessage(threadID string, m Message) (int, error) {
	dir := s.ThreadRoot(threadID)

	for attempt := 0; attempt < addMessageRetries; attempt++ {
		seq, err := s.nextSequence(dir)
		if err != nil {
			return 0, err
		}
		m.Seq = seq
		name := fileName(seq, m.From)
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return 0, fmt.Errorf("thread: create message file: %w", err)
		}

		if m.Timestamp.IsZero() {
			m.Timestamp = time.Now().UTC()
		}
		doc := messageToDoc(m)
		_, writeErr := f.Write(frontmatter.Render(doc))
		closeErr := f.Close()
		if writeErr != nil {
			os.Remove(path)
			return 0, fmt.Errorf("thread: write message file: %w", writeErr)
		}
		if closeErr != nil {
			os.Remove(path)
			return 0, fmt.Errorf("thread: close message file: %w", closeErr)
		}
		return seq, nil
	}
	return 0, ErrSequenceCollision
}

// nextSequence computes the next dense sequence number by scanning the
// directory for existing message file names and taking max+1.
func (s *Store) nextSequence(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("thread: list directory: %w", err)
	}
	max := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		seq, _, ok := parseFileName(e.Name())
		if !ok {
			continue
		}
		if seq > max {
			max = seq
		}
	}
	return max + 1, nil
}

// ListMessages returns every message in threadID, sorted strictly by
// sequence number.
func (s *Store) ListMessages(threadID string) ([]Message, error) {
	dir := s.ThreadRoot(threadID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrThreadNotFound
		}
		return nil, fmt.Errorf("thread: list directory: %w", err)
	}

	var messages []Message
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		seq, sender, ok := parseFileName(e.Name())
		if !ok {
			continue
		}
		path := filepath.Join(dir, e.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("thread: read message %s: %w", e.Name(), err)
		}
		doc, err := frontmatter.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("thread: parse message %s: %w", e.Name(), err)
		}
		msg, err := docToMessage(path, seq, sender, doc)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	sort.Slice(messages, func(i, j int) bool { return messages[i].Seq < messages[j].Seq })
	return messages, nil
}

// ListThreadIDs enumerates every thread directory under the branch root,
// used by the `list` operation.
func (s *Store) ListThreadIDs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("thread: list branch root: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
