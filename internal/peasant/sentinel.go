package peasant

import "strings"

// Sentinel is a stop signal a peasant response can carry, checked
// against the first non-empty line of the agent's reply.
type Sentinel string

const (
	// SentinelNone means the response carried no stop signal; the
	// harness should run another iteration.
	SentinelNone Sentinel = ""
	// SentinelDone means the agent reports the ticket complete.
	SentinelDone Sentinel = "done"
	// SentinelBlocked means the agent cannot make further progress
	// without human input; Detail carries its stated reason.
	SentinelBlocked Sentinel = "blocked"
	// SentinelFailed means the agent reports the ticket cannot be
	// completed.
	SentinelFailed Sentinel = "failed"
)

const (
	donePrefix    = "DONE"
	blockedPrefix = "BLOCKED"
	failedPrefix  = "FAILED"
)

// detectSentinel inspects the first non-empty line of text for one of
// the three closed stop signals. Matching is case-insensitive and
// tolerates a trailing colon-separated detail (e.g. "BLOCKED: needs
// API credentials").
func detectSentinel(text string) (Sentinel, string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)
		switch {
		case upper == donePrefix || strings.HasPrefix(upper, donePrefix+":"):
			return SentinelDone, detailAfterColon(line)
		case upper == blockedPrefix || strings.HasPrefix(upper, blockedPrefix+":"):
			return SentinelBlocked, detailAfterColon(line)
		case upper == failedPrefix || strings.HasPrefix(upper, failedPrefix+":"):
			return SentinelFailed, detailAfterColon(line)
		}
		// Only the first non-empty line is examined; a sentinel
		// buried in prose is not a sentinel.
		return SentinelNone, ""
	}
	return SentinelNone, ""
}

func detailAfterColon(line string) string {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(line[idx+1:])
}
