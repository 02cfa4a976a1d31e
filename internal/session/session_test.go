package session

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetAgentMissingFileReturnsNotFound(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "session.json"))
	_, ok, err := s.GetAgent("claude-a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUpdateAgentThenGetAgentRoundTrips(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "session.json"))
	err := s.UpdateAgent("claude-a", func(AgentSession) AgentSession {
		return AgentSession{SessionToken: "tok-1"}
	})
	require.NoError(t, err)

	got, ok, err := s.GetAgent("claude-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok-1", got.SessionToken)
	require.False(t, got.UpdatedAt.IsZero())
}

func TestUpdateAgentPatchSeesCurrentValue(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, s.UpdateAgent("a", func(AgentSession) AgentSession {
		return AgentSession{SessionToken: "first"}
	}))
	require.NoError(t, s.UpdateAgent("a", func(current AgentSession) AgentSession {
		require.Equal(t, "first", current.SessionToken)
		return AgentSession{SessionToken: "second"}
	}))

	got, _, err := s.GetAgent("a")
	require.NoError(t, err)
	require.Equal(t, "second", got.SessionToken)
}

func TestResetAgentClearsToken(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, s.UpdateAgent("a", func(AgentSession) AgentSession {
		return AgentSession{SessionToken: "tok"}
	}))
	require.NoError(t, s.ResetAgent("a"))

	got, ok, err := s.GetAgent("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "", got.SessionToken)
}

func TestUpdateAgentIsSafeForConcurrentWriters(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "session.json"))
	agents := []string{"a", "b", "c", "d", "e"}

	var wg sync.WaitGroup
	for _, name := range agents {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			err := s.UpdateAgent(name, func(AgentSession) AgentSession {
				return AgentSession{SessionToken: "tok-" + name}
			})
			require.NoError(t, err)
		}(name)
	}
	wg.Wait()

	state, err := s.Load()
	require.NoError(t, err)
	require.Len(t, state.Agents, len(agents))
	for _, name := range agents {
		require.Equal(t, "tok-"+name, state.Agents[name].SessionToken)
	}
}

func TestAgentSessionMarshalsToSpecSchema(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, s.UpdateAgent("a", func(AgentSession) AgentSession {
		return AgentSession{SessionToken: "tok-a", Pid: 4242, Status: StatusRunning}
	}))

	data, err := os.ReadFile(s.path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"resume_token": "tok-a"`)
	require.Contains(t, string(data), `"pid": 4242`)
	require.Contains(t, string(data), `"status": "running"`)
}

func TestAliveReportsFalseForZeroPid(t *testing.T) {
	require.False(t, AgentSession{}.Alive())
}

func TestAliveReportsFalseForUnlikelyPid(t *testing.T) {
	require.False(t, AgentSession{Pid: 999999}.Alive())
}

func TestOtherAgentsUnaffectedByUpdate(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, s.UpdateAgent("a", func(AgentSession) AgentSession {
		return AgentSession{SessionToken: "tok-a"}
	}))
	require.NoError(t, s.UpdateAgent("b", func(AgentSession) AgentSession {
		return AgentSession{SessionToken: "tok-b"}
	}))

	a, _, _ := s.GetAgent("a")
	require.Equal(t, "tok-a", a.SessionToken)
}
