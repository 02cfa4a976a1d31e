package cursorstream

import (
	"testing"

	"github.com/jbohnslav/kingdom/pkg/streamframe"
	"github.com/stretchr/testify/require"
)

func TestExtractFrameToken(t *testing.T) {
	f, ok := ExtractFrame([]byte(`{"type":"content_block_delta","delta":{"kind":"text","text":"hi"}}`))
	require.True(t, ok)
	require.Equal(t, streamframe.Token, f.Kind)
}

func TestExtractFrameStreamEventWrapsToken(t *testing.T) {
	f, ok := ExtractFrame([]byte(`{"type":"stream_event","event":{"type":"content_block_delta","delta":{"kind":"text","text":"hi"}}}`))
	require.True(t, ok)
	require.Equal(t, streamframe.Token, f.Kind)
	require.Equal(t, "hi", f.Text)
}

func TestExtractFrameStreamEventMissingEventFieldSkips(t *testing.T) {
	_, ok := ExtractFrame([]byte(`{"type":"stream_event"}`))
	require.False(t, ok)
}

func TestParseFinalAccumulatesDeltas(t *testing.T) {
	stdout := []byte(
		"{\"type\":\"content_block_delta\",\"delta\":{\"kind\":\"text\",\"text\":\"ab\"}}\n" +
			"{\"type\":\"result\",\"is_error\":false}\n",
	)
	text, _, err := ParseFinal(stdout, nil, 0)
	require.NoError(t, err)
	require.Equal(t, "ab", text)
}

func TestParseFinalErrorResult(t *testing.T) {
	stdout := []byte(`{"type":"result","is_error":true,"result":"nope"}`)
	_, _, err := ParseFinal(stdout, nil, 0)
	require.Error(t, err)
}
