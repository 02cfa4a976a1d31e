// Package watch implements spec.md §4.9's polling watch loop: tail every
// in-flight member's stream file for live frames, list the thread
// directory for newly completed messages, and stop once every expected
// responder has answered the current turn or a timeout elapses.
//
// Grounded on the teacher's
// internal/agentctl/process.WorkspaceTracker: an optional
// *fsnotify.Watcher that only shortens the wait between polls and is
// torn down along with the loop, never the mechanism correctness
// depends on — if fsnotify.NewWatcher fails, WorkspaceTracker logs and
// keeps its poll loop running. The same shape holds here: the 500ms
// poll tick is what the loop acts on; fsnotify only wakes it early.
package watch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jbohnslav/kingdom/internal/backend"
	"github.com/jbohnslav/kingdom/internal/common/logger"
	"github.com/jbohnslav/kingdom/internal/thread"
	"github.com/jbohnslav/kingdom/pkg/streamframe"
)

// DefaultPollInterval is the ≤500ms polling bound spec.md §4.9 requires.
const DefaultPollInterval = 500 * time.Millisecond

// Target is one member the loop tails: its stream file path and the
// backend family whose ExtractFrame understands its line format.
type Target struct {
	Name       string
	Family     backend.Family
	StreamPath string
}

// Request configures one watch invocation.
type Request struct {
	Store           *thread.Store
	ThreadID        string
	DeclaredMembers []string
	Targets         []Target
	PollInterval    time.Duration // <= 0 means DefaultPollInterval
	Timeout         time.Duration // <= 0 means no timeout (watch until done)

	OnMessage func(thread.Message)
	OnFrame   func(member string, frame streamframe.Frame)
}

// Outcome reports why Run returned.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeCanceled Outcome = "canceled"
)

// Run polls req.Store and req.Targets' stream files until every expected
// responder in the thread's current turn has a message, ctx is
// cancelled, or req.Timeout elapses.
func Run(ctx context.Context, req Request) (Outcome, error) {
	log := logger.Default().With(zap.String("component", "watch"), zap.String("thread_id", req.ThreadID))

	interval := req.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var deadline <-chan time.Time
	if req.Timeout > 0 {
		timer := time.NewTimer(req.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	watcher, watchCh := startFSNotify(req, log)
	if watcher != nil {
		defer watcher.Close()
	}

	t := &tailState{
		offsets: make(map[string]int64),
		pending: make(map[string][]byte),
	}
	lastEmittedSeq := 0

	tick := func() (bool, error) {
		for _, target := range req.Targets {
			t.tail(target, req.OnFrame, log)
		}

		messages, err := req.Store.ListMessages(req.ThreadID)
		if err != nil {
			return false, err
		}
		for _, m := range messages {
			if m.Seq <= lastEmittedSeq {
				continue
			}
			lastEmittedSeq = m.Seq
			if req.OnMessage != nil {
				req.OnMessage(m)
			}
		}

		if _, ok := thread.LastHumanMessage(messages); !ok {
			return false, nil
		}
		for _, state := range thread.DeriveStatus(messages, req.DeclaredMembers, nil) {
			if state == thread.StatePending {
				return false, nil
			}
		}
		return true, nil
	}

	done, err := tick()
	if err != nil {
		return "", err
	}
	if done {
		return OutcomeComplete, nil
	}

	for {
		select {
		case <-ctx.Done():
			return OutcomeCanceled, nil
		case <-deadline:
			return OutcomeTimeout, nil
		case <-watchCh:
			// fsnotify fired: fall through to an immediate poll, same as
			// a regular tick. Never trusted on its own — see package doc.
		case <-ticker.C:
		}

		done, err := tick()
		if err != nil {
			return "", err
		}
		if done {
			return OutcomeComplete, nil
		}
	}
}

// startFSNotify attempts to watch the thread's stream files so the loop
// can wake early on a write instead of waiting for the next tick. A
// failure to start the watcher is logged and ignored; the poll ticker
// remains the sole correctness mechanism.
func startFSNotify(req Request, log *logger.Logger) (*fsnotify.Watcher, <-chan fsnotify.Event) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("fsnotify unavailable, falling back to polling only", zap.Error(err))
		return nil, nil
	}
	for _, target := range req.Targets {
		if target.StreamPath == "" {
			continue
		}
		if err := watcher.Add(target.StreamPath); err != nil {
			log.Debug("fsnotify add failed, not yet created", zap.String("path", target.StreamPath))
		}
	}
	return watcher, watcher.Events
}

// tailState tracks per-stream-file byte offsets and any trailing partial
// line carried over between ticks.
type tailState struct {
	offsets map[string]int64
	pending map[string][]byte
}

// tail implements spec.md §4.9 item 1-2: read from the last offset,
// reset on shrink, forget on disappearance, and feed only complete
// lines to the family's frame extractor.
func (t *tailState) tail(target Target, onFrame func(string, streamframe.Frame), log *logger.Logger) {
	if target.StreamPath == "" || target.Family.ExtractFrame == nil {
		return
	}

	info, err := os.Stat(target.StreamPath)
	if errors.Is(err, os.ErrNotExist) {
		delete(t.offsets, target.StreamPath)
		delete(t.pending, target.StreamPath)
		return
	}
	if err != nil {
		log.Debug("stat stream file failed", zap.String("path", target.StreamPath), zap.Error(err))
		return
	}

	offset := t.offsets[target.StreamPath]
	if info.Size() < offset {
		offset = 0
		t.pending[target.StreamPath] = nil
	}
	if info.Size() == offset {
		return
	}

	f, err := os.Open(target.StreamPath)
	if err != nil {
		log.Debug("open stream file failed", zap.String("path", target.StreamPath), zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		log.Debug("seek stream file failed", zap.String("path", target.StreamPath), zap.Error(err))
		return
	}

	buf := make([]byte, info.Size()-offset)
	n, readErr := f.Read(buf)
	if readErr != nil && n == 0 {
		return
	}
	data := buf[:n]

	t.offsets[target.StreamPath] = offset + int64(n)

	combined := append(t.pending[target.StreamPath], data...)
	lines, rest := splitCompleteLines(combined)
	t.pending[target.StreamPath] = rest

	for _, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		frame, ok := target.Family.ExtractFrame(line)
		if !ok || onFrame == nil {
			continue
		}
		onFrame(target.Name, *frame)
	}
}

// splitCompleteLines returns every newline-terminated line in data and
// any trailing bytes after the last newline, which the caller must
// carry forward rather than treat as a complete line.
func splitCompleteLines(data []byte) (lines [][]byte, rest []byte) {
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		rest = append([]byte(nil), data[start:]...)
	}
	return lines, rest
}
