package member

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyTimeoutWinsOverEverything(t *testing.T) {
	require.Equal(t, OutcomeTimedOut, Classify(0, "", "some output", true))
	require.Equal(t, OutcomeTimedOut, Classify(1, "command not found", "", true))
}

func TestClassifyCommandNotFoundIsNonRetriable(t *testing.T) {
	require.Equal(t, OutcomeNonRetriableFailure, Classify(127, "sh: claude: command not found", "", false))
}

func TestClassifyVersionMismatchIsNonRetriable(t *testing.T) {
	require.Equal(t, OutcomeNonRetriableFailure, Classify(2, "unknown flag: --include-partial-messages", "", false))
}

func TestClassifySuccessWithOutput(t *testing.T) {
	require.Equal(t, OutcomeSucceeded, Classify(0, "", "the answer is 42", false))
}

func TestClassifyEmptySuccessfulOutputIsRetriable(t *testing.T) {
	require.Equal(t, OutcomeRetriableFailure, Classify(0, "", "   \n", false))
}

func TestClassifyTransientNonZeroExitIsRetriable(t *testing.T) {
	require.Equal(t, OutcomeRetriableFailure, Classify(1, "transient network error", "", false))
}

func TestShouldRetryOnlyForRetriableFailure(t *testing.T) {
	require.True(t, ShouldRetry(OutcomeRetriableFailure))
	require.False(t, ShouldRetry(OutcomeSucceeded))
	require.False(t, ShouldRetry(OutcomeNonRetriableFailure))
	require.False(t, ShouldRetry(OutcomeTimedOut))
}
