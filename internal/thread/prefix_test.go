package thread

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsErrorBody(t *testing.T) {
	require.True(t, IsErrorBody("*Error: boom\n\npartial"))
	require.False(t, IsErrorBody("all good"))
}

func TestIsFailureBodyCoversAllThreePrefixes(t *testing.T) {
	require.True(t, IsFailureBody(ErrorPrefix+" x"))
	require.True(t, IsFailureBody(InterruptedPrefix+" x"))
	require.True(t, IsFailureBody(TimeoutPrefix+" x"))
	require.False(t, IsFailureBody("normal reply"))
}

func TestProducedButNoErrorNeverClassifiesAsFailed(t *testing.T) {
	require.False(t, IsFailureBody("*Errorist: not actually a prefix match"))
}
