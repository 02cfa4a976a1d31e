package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jbohnslav/kingdom"
	"github.com/jbohnslav/kingdom/internal/thread"
)

func TestRunListShowsSeededThread(t *testing.T) {
	root := t.TempDir()
	core, err := kingdom.NewCore(root, "main")
	require.NoError(t, err)

	id, err := core.Store.CreateThread([]string{"a", "b"}, "council")
	require.NoError(t, err)
	_, err = core.Store.AddMessage(id, thread.Message{From: thread.KingSender, To: "all", Body: "question"})
	require.NoError(t, err)

	code := run([]string{"-project", root, "list"})
	require.Equal(t, exitOK, code)
}

func TestRunShowUnknownThreadFails(t *testing.T) {
	root := t.TempDir()
	code := run([]string{"-project", root, "show", "does-not-exist"})
	require.Equal(t, exitUserError, code)
}

func TestRunResetSessionSucceeds(t *testing.T) {
	root := t.TempDir()
	code := run([]string{"-project", root, "reset-session", "claude-a"})
	require.Equal(t, exitOK, code)
}

func TestRunWithNoArgsIsUserError(t *testing.T) {
	code := run(nil)
	require.Equal(t, exitUserError, code)
}

func TestRunStatusAllOnEmptyBranchSucceeds(t *testing.T) {
	root := t.TempDir()
	code := run([]string{"-project", root, "status", "all"})
	require.Equal(t, exitOK, code)
}
