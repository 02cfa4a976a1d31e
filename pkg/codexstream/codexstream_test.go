package codexstream

import (
	"testing"

	"github.com/jbohnslav/kingdom/pkg/streamframe"
	"github.com/stretchr/testify/require"
)

func TestExtractFrameAgentMessage(t *testing.T) {
	f, ok := ExtractFrame([]byte(`{"type":"item.completed","item":{"type":"agent_message","text":"hi"}}`))
	require.True(t, ok)
	require.Equal(t, streamframe.Token, f.Kind)
	require.Equal(t, "hi", f.Text)
}

func TestExtractFrameTurnStartedSkips(t *testing.T) {
	_, ok := ExtractFrame([]byte(`{"type":"turn.started"}`))
	require.False(t, ok)
}

func TestExtractFrameTurnFailed(t *testing.T) {
	f, ok := ExtractFrame([]byte(`{"type":"turn.failed","error":{"message":"boom"}}`))
	require.True(t, ok)
	require.Equal(t, streamframe.Error, f.Kind)
	require.Equal(t, "boom", f.Message)
}

func TestParseFinalNDJSON(t *testing.T) {
	stdout := []byte(
		"{\"type\":\"thread.started\",\"thread_id\":\"11111111-1111-1111-1111-111111111111\"}\n" +
			"{\"type\":\"item.completed\",\"item\":{\"type\":\"agent_message\",\"text\":\"done\"}}\n" +
			"{\"type\":\"turn.completed\"}\n",
	)
	text, token, err := ParseFinal(stdout, nil, 0)
	require.NoError(t, err)
	require.Equal(t, "done", text)
	require.Equal(t, "11111111-1111-1111-1111-111111111111", token)
}

func TestParseFinalTurnFailedIsError(t *testing.T) {
	stdout := []byte(`{"type":"turn.failed","error":{"message":"network down"}}`)
	_, _, err := ParseFinal(stdout, nil, 0)
	require.Error(t, err)
}
