package claudestream

import (
	"testing"

	"github.com/jbohnslav/kingdom/pkg/streamframe"
	"github.com/stretchr/testify/require"
)

func TestExtractFrameContentBlockDelta(t *testing.T) {
	f, ok := ExtractFrame([]byte(`{"type":"content_block_delta","delta":{"type":"text_delta","text":"hi"}}`))
	require.True(t, ok)
	require.Equal(t, streamframe.Token, f.Kind)
	require.Equal(t, "hi", f.Text)
}

func TestExtractFrameStreamEventWrapsTextDelta(t *testing.T) {
	f, ok := ExtractFrame([]byte(`{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"hi"}}}`))
	require.True(t, ok)
	require.Equal(t, streamframe.Token, f.Kind)
	require.Equal(t, "hi", f.Text)
}

func TestExtractFrameStreamEventWrapsThinkingDelta(t *testing.T) {
	f, ok := ExtractFrame([]byte(`{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"thinking_delta","text":"pondering"}}}`))
	require.True(t, ok)
	require.Equal(t, streamframe.Thinking, f.Kind)
	require.Equal(t, "pondering", f.Text)
}

func TestExtractFrameStreamEventWrapsSessionInit(t *testing.T) {
	f, ok := ExtractFrame([]byte(`{"type":"stream_event","event":{"type":"system","session_id":"sess-9"}}`))
	require.True(t, ok)
	require.Equal(t, streamframe.Session, f.Kind)
	require.Equal(t, "sess-9", f.SessionToken)
}

func TestExtractFrameStreamEventMissingEventFieldSkips(t *testing.T) {
	_, ok := ExtractFrame([]byte(`{"type":"stream_event"}`))
	require.False(t, ok)
}

func TestExtractFrameUnknownEventSkips(t *testing.T) {
	_, ok := ExtractFrame([]byte(`{"type":"something_new"}`))
	require.False(t, ok)
}

func TestExtractFrameMalformedLineSkips(t *testing.T) {
	_, ok := ExtractFrame([]byte(`not json`))
	require.False(t, ok)
}

func TestParseFinalSingleJSONResult(t *testing.T) {
	stdout := []byte(`{"type":"result","subtype":"success","result":"the answer","is_error":false}`)
	text, _, err := ParseFinal(stdout, nil, 0)
	require.NoError(t, err)
	require.Equal(t, "the answer", text)
}

func TestParseFinalNDJSON(t *testing.T) {
	stdout := []byte(
		"{\"type\":\"system\",\"session_id\":\"sess-1\"}\n" +
			"{\"type\":\"assistant\",\"message\":{\"content\":[{\"type\":\"text\",\"text\":\"hello\"}]}}\n" +
			"{\"type\":\"result\",\"result\":\"hello\",\"is_error\":false}\n",
	)
	text, token, err := ParseFinal(stdout, nil, 0)
	require.NoError(t, err)
	require.Equal(t, "hello", text)
	require.Equal(t, "sess-1", token)
}

func TestParseFinalErrorResult(t *testing.T) {
	stdout := []byte(`{"type":"result","result":"boom","is_error":true}`)
	_, _, err := ParseFinal(stdout, nil, 0)
	require.Error(t, err)
}

func TestParseFinalEmptyOutputNonZeroExit(t *testing.T) {
	_, _, err := ParseFinal(nil, []byte("command not found"), 127)
	require.Error(t, err)
}
