package thread

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateThreadWritesMetadata(t *testing.T) {
	s := NewStore(t.TempDir())
	id, err := s.CreateThread([]string{"a", "b"}, "council")
	require.NoError(t, err)
	require.Len(t, id, slugLength)

	meta, err := s.ReadMetadata(id)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, meta.Members)
	require.Equal(t, "council", meta.Phase)
}

func TestAddMessageAssignsDenseSequence(t *testing.T) {
	s := NewStore(t.TempDir())
	id, err := s.CreateThread([]string{"a"}, "council")
	require.NoError(t, err)

	seq1, err := s.AddMessage(id, Message{From: KingSender, To: "a", Body: "hello"})
	require.NoError(t, err)
	require.Equal(t, 1, seq1)

	seq2, err := s.AddMessage(id, Message{From: "a", To: KingSender, Body: "hi"})
	require.NoError(t, err)
	require.Equal(t, 2, seq2)
}

func TestAddMessageFileNameZeroPadded(t *testing.T) {
	s := NewStore(t.TempDir())
	id, _ := s.CreateThread([]string{"a"}, "council")
	s.AddMessage(id, Message{From: KingSender, To: "a", Body: "hi"})

	path := filepath.Join(s.ThreadRoot(id), "0001-king.md")
	require.FileExists(t, path)
}

func TestListMessagesSortedBySequence(t *testing.T) {
	s := NewStore(t.TempDir())
	id, _ := s.CreateThread([]string{"a", "b"}, "council")
	s.AddMessage(id, Message{From: KingSender, To: "all", Body: "hello"})
	s.AddMessage(id, Message{From: "b", To: KingSender, Body: "from b"})
	s.AddMessage(id, Message{From: "a", To: KingSender, Body: "from a"})

	msgs, err := s.ListMessages(id)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, 1, msgs[0].Seq)
	require.Equal(t, 2, msgs[1].Seq)
	require.Equal(t, 3, msgs[2].Seq)
}

func TestAddMessageConcurrentWritersNeverCollide(t *testing.T) {
	s := NewStore(t.TempDir())
	id, _ := s.CreateThread([]string{"a", "b", "c", "d"}, "council")
	s.AddMessage(id, Message{From: KingSender, To: "all", Body: "go"})

	var wg sync.WaitGroup
	members := []string{"a", "b", "c", "d"}
	for _, m := range members {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := s.AddMessage(id, Message{From: name, To: KingSender, Body: "reply"})
			require.NoError(t, err)
		}(m)
	}
	wg.Wait()

	msgs, err := s.ListMessages(id)
	require.NoError(t, err)
	require.Len(t, msgs, 5)

	seen := make(map[int]bool)
	for _, m := range msgs {
		require.False(t, seen[m.Seq], "duplicate sequence number %d", m.Seq)
		seen[m.Seq] = true
	}
}

func TestListMessagesRoundTripsTimestampAndRefs(t *testing.T) {
	s := NewStore(t.TempDir())
	id, _ := s.CreateThread([]string{"a"}, "council")
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.AddMessage(id, Message{From: KingSender, To: "a", Timestamp: ts, Refs: []string{"design.md"}, Body: "hi"})

	msgs, err := s.ListMessages(id)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.True(t, ts.Equal(msgs[0].Timestamp))
	require.Equal(t, []string{"design.md"}, msgs[0].Refs)
}

func TestListThreadIDsSorted(t *testing.T) {
	s := NewStore(t.TempDir())
	s.CreateThread(nil, "council")
	s.CreateThread(nil, "council")

	ids, err := s.ListThreadIDs()
	require.NoError(t, err)
	require.Len(t, ids, 2)
}

func TestListMessagesUnknownThread(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.ListMessages("does-not-exist")
	require.ErrorIs(t, err, ErrThreadNotFound)
}
