package thread

import "strings"

// Body-prefix conventions a message body may open with. These are the
// only structured error signal Kingdom carries — no frontmatter
// `error:` header field is used (see DESIGN.md Open Question #2). Every
// component that needs to recognize a failed or special-cased reply
// goes through the helpers below so the string match never drifts.
const (
	ErrorPrefix       = "*Error:"
	InterruptedPrefix = "*Interrupted:"
	TimeoutPrefix     = "*Timeout:"
)

// IsErrorBody reports whether body is the orchestrator's generic
// error-body convention (spec.md §4.4).
func IsErrorBody(body string) bool {
	return strings.HasPrefix(body, ErrorPrefix)
}

// IsInterruptedBody reports whether body was written for a cancelled run.
func IsInterruptedBody(body string) bool {
	return strings.HasPrefix(body, InterruptedPrefix)
}

// IsTimeoutBody reports whether body was written for a timed-out run.
func IsTimeoutBody(body string) bool {
	return strings.HasPrefix(body, TimeoutPrefix)
}

// IsFailureBody reports whether body indicates any of the three failure
// conventions — the predicate RespondedMembers (and through it the retry
// engine) uses to decide "this member needs attention". DeriveStatus
// calls the three helpers above individually to tell the states apart.
func IsFailureBody(body string) bool {
	return IsErrorBody(body) || IsInterruptedBody(body) || IsTimeoutBody(body)
}
