package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jbohnslav/kingdom/internal/backend"
	"github.com/jbohnslav/kingdom/internal/thread"
	"github.com/jbohnslav/kingdom/pkg/streamframe"
)

func lineFamily() backend.Family {
	return backend.Family{
		Name: "test-lines",
		ExtractFrame: func(line []byte) (*streamframe.Frame, bool) {
			return &streamframe.Frame{Kind: streamframe.Token, Text: string(line)}, true
		},
	}
}

func TestRunCompletesWhenAllMembersRespond(t *testing.T) {
	store := thread.NewStore(t.TempDir())
	id, err := store.CreateThread([]string{"a", "b"}, "council")
	require.NoError(t, err)
	_, err = store.AddMessage(id, thread.Message{From: thread.KingSender, To: "all", Body: "question"})
	require.NoError(t, err)
	_, err = store.AddMessage(id, thread.Message{From: "a", Body: "reply a"})
	require.NoError(t, err)
	_, err = store.AddMessage(id, thread.Message{From: "b", Body: "reply b"})
	require.NoError(t, err)

	var seen []thread.Message
	outcome, err := Run(context.Background(), Request{
		Store:           store,
		ThreadID:        id,
		DeclaredMembers: []string{"a", "b"},
		PollInterval:    20 * time.Millisecond,
		OnMessage:       func(m thread.Message) { seen = append(seen, m) },
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeComplete, outcome)
	require.Len(t, seen, 3)
}

func TestRunTimesOutWhenResponderNeverAnswers(t *testing.T) {
	store := thread.NewStore(t.TempDir())
	id, err := store.CreateThread([]string{"a", "b"}, "council")
	require.NoError(t, err)
	_, err = store.AddMessage(id, thread.Message{From: thread.KingSender, To: "all", Body: "question"})
	require.NoError(t, err)
	_, err = store.AddMessage(id, thread.Message{From: "a", Body: "reply a"})
	require.NoError(t, err)

	outcome, err := Run(context.Background(), Request{
		Store:           store,
		ThreadID:        id,
		DeclaredMembers: []string{"a", "b"},
		PollInterval:    10 * time.Millisecond,
		Timeout:         60 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeTimeout, outcome)
}

func TestRunCanceledByContext(t *testing.T) {
	store := thread.NewStore(t.TempDir())
	id, err := store.CreateThread([]string{"a"}, "council")
	require.NoError(t, err)
	_, err = store.AddMessage(id, thread.Message{From: thread.KingSender, To: "all", Body: "question"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	outcome, err := Run(ctx, Request{
		Store:           store,
		ThreadID:        id,
		DeclaredMembers: []string{"a"},
		PollInterval:    10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeCanceled, outcome)
}

func TestRunEmitsStreamFramesFromTailedFile(t *testing.T) {
	store := thread.NewStore(t.TempDir())
	id, err := store.CreateThread([]string{"a"}, "council")
	require.NoError(t, err)
	_, err = store.AddMessage(id, thread.Message{From: thread.KingSender, To: "all", Body: "question"})
	require.NoError(t, err)

	streamPath := filepath.Join(t.TempDir(), ".stream-a.jsonl")
	require.NoError(t, os.WriteFile(streamPath, []byte("line one\nline two\n"), 0o644))

	var frames []streamframe.Frame
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	outcome, err := Run(ctx, Request{
		Store:           store,
		ThreadID:        id,
		DeclaredMembers: []string{"a"},
		Targets:         []Target{{Name: "a", Family: lineFamily(), StreamPath: streamPath}},
		PollInterval:    10 * time.Millisecond,
		OnFrame:         func(member string, f streamframe.Frame) { frames = append(frames, f) },
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeCanceled, outcome)
	require.Len(t, frames, 2)
	require.Equal(t, "line one", frames[0].Text)
	require.Equal(t, "line two", frames[1].Text)
}

func TestSplitCompleteLinesCarriesPartialTrailingBytes(t *testing.T) {
	lines, rest := splitCompleteLines([]byte("a\nb\npartial"))
	require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, lines)
	require.Equal(t, []byte("partial"), rest)
}

func TestSplitCompleteLinesNoTrailingPartial(t *testing.T) {
	lines, rest := splitCompleteLines([]byte("a\nb\n"))
	require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, lines)
	require.Empty(t, rest)
}
