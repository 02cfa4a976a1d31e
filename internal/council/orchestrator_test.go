package council

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

func shellTarget(name, script string) MemberTarget {
	return MemberTarget{
		Name: name,
		Family: backend.Family{
			Name:       "test-shell",
			BaseArgv:   []string{"sh", "-c", script},
			ParseFinal: echoParseFinal,
		},
	}
}

// TestRunTwoAgentsOneTimesOut is the concrete spec scenario: one member
// replies normally, one sleeps past the council timeout and is reported
// with a *Timeout: prefixed body.
func TestRunTwoAgentsOneTimesOut(t *testing.T) {
	store := thread.NewStore(t.TempDir())
	id, err := store.CreateThread([]string{"a", "b"}, "council")
	require.NoError(t, err)
	_, err = store.AddMessage(id, thread.Message{From: thread.KingSender, To: "all", Body: "hello"})
	require.NoError(t, err)

	orch := NewOrchestrator(store)
	var callbacks []member.MemberResponse
	responses, err := orch.Run(RunRequest{
		ThreadID: id,
		Phase:    config.PhaseCouncil,
		Targets: []MemberTarget{
			shellTarget("a", "printf 'hi from a'"),
			shellTarget("b", "sleep 30"),
		},
		UserPrompt: "hello",
		Timeout:    300 * time.Millisecond,
		OnResponse: func(r member.MemberResponse) { callbacks = append(callbacks, r) },
	})
	require.NoError(t, err)
	require.Len(t, responses, 2)
	require.Len(t, callbacks, 2)

	messages, err := store.ListMessages(id)
	require.NoError(t, err)
	require.Len(t, messages, 3)

	var aMsg, bMsg thread.Message
	for _, m := range messages {
		switch m.From {
		case "a":
			aMsg = m
		case "b":
			bMsg = m
		}
	}
	require.Equal(t, "hi from a", aMsg.Body)
	require.True(t, thread.IsTimeoutBody(bMsg.Body), "expected %q to start with timeout prefix", bMsg.Body)

	status := thread.DeriveStatus(messages, []string{"a", "b"}, nil)
	require.Equal(t, thread.StateResponded, status["a"])
	require.Equal(t, thread.StateTimedOut, status["b"])
}

func TestRunSuccessfulMembersProduceVerbatimBodies(t *testing.T) {
	store := thread.NewStore(t.TempDir())
	id, err := store.CreateThread([]string{"a"}, "council")
	require.NoError(t, err)
	_, err = store.AddMessage(id, thread.Message{From: thread.KingSender, To: "all", Body: "hi"})
	require.NoError(t, err)

	orch := NewOrchestrator(store)
	_, err = orch.Run(RunRequest{
		ThreadID:   id,
		Phase:      config.PhaseCouncil,
		Targets:    []MemberTarget{shellTarget("a", "printf 'ok'")},
		UserPrompt: "hi",
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)

	messages, err := store.ListMessages(id)
	require.NoError(t, err)
	require.Equal(t, "ok", messages[1].Body)
}

func TestRunRunsMembersConcurrently(t *testing.T) {
	store := thread.NewStore(t.TempDir())
	id, err := store.CreateThread([]string{"a", "b"}, "council")
	require.NoError(t, err)

	orch := NewOrchestrator(store)
	start := time.Now()
	_, err = orch.Run(RunRequest{
		ThreadID: id,
		Targets: []MemberTarget{
			shellTarget("a", "sleep 0.3"),
			shellTarget("b", "sleep 0.3"),
		},
		Timeout: 5 * time.Second,
	})
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.Less(t, elapsed, 1*time.Second, "both members should run concurrently, not sequentially")
}

func TestRunCancelHandleInterruptsAllMembers(t *testing.T) {
	store := thread.NewStore(t.TempDir())
	id, err := store.CreateThread([]string{"a", "b"}, "council")
	require.NoError(t, err)

	cancel := member.NewCancelHandle()
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel.Cancel()
	}()

	orch := NewOrchestrator(store)
	responses, err := orch.Run(RunRequest{
		ThreadID: id,
		Targets: []MemberTarget{
			shellTarget("a", "sleep 30"),
			shellTarget("b", "sleep 30"),
		},
		Timeout: 10 * time.Second,
		Cancel:  cancel,
	})
	require.NoError(t, err)
	for _, r := range responses {
		require.True(t, r.Interrupted)
	}
}

func TestResolveTargetsRejectsUndeclaredAgent(t *testing.T) {
	_, err := ResolveTargets([]string{"ghost"}, map[string]config.AgentDef{}, backend.DefaultRegistry())
	require.Error(t, err)
}

func TestResolveTargetsRejectsUnregisteredBackend(t *testing.T) {
	_, err := ResolveTargets([]string{"a"}, map[string]config.AgentDef{"a": {Backend: "no-such-backend"}}, backend.DefaultRegistry())
	require.Error(t, err)
}

func TestResolveTargetsResolvesFamily(t *testing.T) {
	targets, err := ResolveTargets([]string{"a"}, map[string]config.AgentDef{"a": {Backend: backend.Claude}}, backend.DefaultRegistry())
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, backend.Claude, targets[0].Family.Name)
}
