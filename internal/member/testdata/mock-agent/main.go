//go:build ignore

// Command mock-agent simulates a vendor agent CLI for Member runner
// integration tests. It is not compiled as part of the module (see the
// ignore build tag); tests that want a real subprocess build it on the
// fly with `go build` into a temp binary, mirroring the teacher's
// engine/cli/claude/testdata/mock-streaming and
// engine/acp/testdata/mock-acp fixtures.
//
// Behavior is controlled entirely by environment variables so one
// binary covers every scenario in spec.md §8:
//
//	MOCK_AGENT_FAMILY     claude|codex|cursor (default claude) — which
//	                      NDJSON shape to print.
//	MOCK_AGENT_TEXT       the reply text to embed (default "hello from mock-agent").
//	MOCK_AGENT_SESSION    session token to report (default "mock-session").
//	MOCK_AGENT_DELAY_MS   sleep this long before printing anything.
//	MOCK_AGENT_SLEEP_MS   sleep this long after printing, before exit —
//	                      used to simulate a member that hangs past its
//	                      timeout.
//	MOCK_AGENT_EXIT_CODE  process exit code (default 0).
//	MOCK_AGENT_STDERR     text to write to stderr before exiting.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func main() {
	if ms := envInt("MOCK_AGENT_DELAY_MS", 0); ms > 0 {
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}

	text := envString("MOCK_AGENT_TEXT", "hello from mock-agent")
	session := envString("MOCK_AGENT_SESSION", "mock-session")

	switch envString("MOCK_AGENT_FAMILY", "claude") {
	case "codex":
		printLines([]string{
			fmt.Sprintf(`{"type":"thread.started","thread_id":%q}`, session),
			fmt.Sprintf(`{"type":"item.completed","item":{"type":"agent_message","text":%q}}`, text),
			`{"type":"turn.completed"}`,
		})
	case "cursor":
		printLines([]string{
			fmt.Sprintf(`{"type":"system","subtype":"init","session_id":%q}`, session),
			fmt.Sprintf(`{"type":"content_block_delta","delta":{"type":"text_delta","text":%q}}`, text),
			fmt.Sprintf(`{"type":"result","result":%q}`, text),
		})
	default:
		printLines([]string{
			fmt.Sprintf(`{"type":"system","subtype":"init","session_id":%q}`, session),
			fmt.Sprintf(`{"type":"stream_event","event":{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%q}}}`, text),
			fmt.Sprintf(`{"type":"assistant","message":{"content":[{"type":"text","text":%q}]}}`, text),
			fmt.Sprintf(`{"type":"result","result":%q}`, text),
		})
	}

	if stderrMsg := envString("MOCK_AGENT_STDERR", ""); stderrMsg != "" {
		fmt.Fprintln(os.Stderr, stderrMsg)
	}

	if ms := envInt("MOCK_AGENT_SLEEP_MS", 0); ms > 0 {
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}

	os.Exit(envInt("MOCK_AGENT_EXIT_CODE", 0))
}

func printLines(lines []string) {
	for _, line := range lines {
		fmt.Println(line)
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
