// Package streamframe defines the normalized event shape every backend
// family's streaming parser reduces vendor output to. It has no
// dependents within the pack worth naming: it exists purely so
// internal/backend and the four pkg/*stream packages can agree on one
// type without importing each other.
package streamframe

// Kind names the normalized frame categories a family parser can emit.
type Kind string

const (
	Token    Kind = "token"
	Thinking Kind = "thinking"
	Status   Kind = "status"
	Error    Kind = "error"
	Session  Kind = "session"
)

// Frame is one normalized unit of vendor streaming output. Only the
// fields relevant to Kind are populated; the rest are zero values.
type Frame struct {
	Kind Kind

	// Token, Thinking
	Text string

	// Status
	Phase string

	// Error
	Message string

	// Session
	SessionToken string
}
