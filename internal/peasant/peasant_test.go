package peasant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jbohnslav/kingdom/internal/backend"
	"github.com/jbohnslav/kingdom/internal/config"
	"github.com/jbohnslav/kingdom/internal/member"
	"github.com/jbohnslav/kingdom/internal/thread"
)

func echoParseFinal(stdout, stderr []byte, exitCode int) (string, string, error) {
	return string(stdout), "", nil
}

func shellAgent(name, script string) member.AgentConfig {
	return member.AgentConfig{
		Name: name,
		Family: backend.Family{
			Name:       "test-shell",
			BaseArgv:   []string{"sh", "-c", script},
			StreamExt:  ".jsonl",
			ParseFinal: echoParseFinal,
		},
	}
}

func TestRunStopsOnDoneSentinel(t *testing.T) {
	store := thread.NewStore(t.TempDir())
	id, err := store.CreateThread([]string{"p"}, config.PhasePeasant)
	require.NoError(t, err)

	h := NewHarness(store)
	result, err := h.Run(Request{
		ThreadID:      id,
		TicketBody:    "fix the flaky test",
		Agent:         shellAgent("p", "printf 'DONE\\n\\nfixed it'"),
		MaxIterations: 5,
		Timeout:       5 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, SentinelDone, result.Sentinel)
	require.Equal(t, 1, result.Iterations)

	messages, err := store.ListMessages(id)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "p", messages[0].From)
}

func TestRunStopsOnBlockedSentinelWithDetail(t *testing.T) {
	store := thread.NewStore(t.TempDir())
	id, err := store.CreateThread([]string{"p"}, config.PhasePeasant)
	require.NoError(t, err)

	h := NewHarness(store)
	result, err := h.Run(Request{
		ThreadID:      id,
		TicketBody:    "rotate the credentials",
		Agent:         shellAgent("p", "printf 'BLOCKED: need prod access'"),
		MaxIterations: 5,
		Timeout:       5 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, SentinelBlocked, result.Sentinel)
	require.Equal(t, "need prod access", result.Detail)
}

func TestRunExhaustsMaxIterationsWithoutSentinel(t *testing.T) {
	store := thread.NewStore(t.TempDir())
	id, err := store.CreateThread([]string{"p"}, config.PhasePeasant)
	require.NoError(t, err)

	h := NewHarness(store)
	result, err := h.Run(Request{
		ThreadID:      id,
		TicketBody:    "investigate",
		Agent:         shellAgent("p", "printf 'still working on it'"),
		MaxIterations: 3,
		Timeout:       5 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, SentinelNone, result.Sentinel)
	require.Equal(t, 3, result.Iterations)

	messages, err := store.ListMessages(id)
	require.NoError(t, err)
	require.Len(t, messages, 3)
}

func TestRunStopsOnTimeout(t *testing.T) {
	store := thread.NewStore(t.TempDir())
	id, err := store.CreateThread([]string{"p"}, config.PhasePeasant)
	require.NoError(t, err)

	h := NewHarness(store)
	result, err := h.Run(Request{
		ThreadID:      id,
		TicketBody:    "slow task",
		Agent:         shellAgent("p", "sleep 5"),
		MaxIterations: 5,
		Timeout:       50 * time.Millisecond,
	})
	require.NoError(t, err)
	require.True(t, result.TimedOut)
	require.Equal(t, 1, result.Iterations)

	messages, err := store.ListMessages(id)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Contains(t, messages[0].Body, thread.TimeoutPrefix)
}

func TestRunIncludesPriorWorklogInSubsequentPrompt(t *testing.T) {
	store := thread.NewStore(t.TempDir())
	id, err := store.CreateThread([]string{"p"}, config.PhasePeasant)
	require.NoError(t, err)

	// The prompt arrives as $0. The script emits DONE only when the prompt
	// carries the first worklog entry, so the run can stop on iteration 2
	// only if that iteration's prompt includes iteration 1's output.
	script := `case "$0" in *'worklog entry 1'*) printf 'DONE';; *) printf 'working';; esac`

	h := NewHarness(store)
	result, err := h.Run(Request{
		ThreadID:      id,
		TicketBody:    "multi-step task",
		Agent:         shellAgent("p", script),
		MaxIterations: 5,
		Timeout:       5 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, SentinelDone, result.Sentinel)
	require.Equal(t, 2, result.Iterations)
}
