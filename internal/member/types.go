package member

import (
	"sync/atomic"
	"time"

	"github.com/jbohnslav/kingdom/internal/backend"
)

// AgentConfig is one council member's fully resolved invocation shape:
// the agent name as declared in config.json, the backend family it maps
// to, and its overrides.
type AgentConfig struct {
	Name      string
	Family    backend.Family
	Model     string
	ExtraArgs []string
}

// CancelHandle is the shareable flag described in spec.md §4.5: the
// Council orchestrator shares one handle across every member of a run
// and sets it to request early termination. The runner polls it between I/O reads
// rather than relying solely on context cancellation, since a run must
// still produce a thread message (body prefix `*Interrupted:`) rather
// than simply unwind.
type CancelHandle struct {
	flag atomic.Bool
}

// NewCancelHandle returns a handle in the not-cancelled state.
func NewCancelHandle() *CancelHandle { return &CancelHandle{} }

// Cancel requests termination of the run owning this handle.
func (c *CancelHandle) Cancel() { c.flag.Store(true) }

// Cancelled reports whether Cancel has been called.
func (c *CancelHandle) Cancelled() bool { return c.flag.Load() }

// RunInput is everything one Run call needs beyond the AgentConfig.
type RunInput struct {
	Prompt      string
	ResumeToken string
	Timeout     time.Duration
	WorkDir     string
	StreamPath  string // empty disables stream-file teeing
	Streaming   bool
	Cancel      *CancelHandle // nil means the run cannot be cancelled early
}

// MemberResponse is the outcome of one member invocation, per spec.md
// §4.5 item 6.
type MemberResponse struct {
	Name         string
	Text         string
	SessionToken string
	Error        error
	Elapsed      time.Duration
	Interrupted  bool
	Outcome      Outcome
	ExitCode     int
	TimedOut     bool
}
