// Package council fans a single prompt out to every council member
// concurrently, writing each member's response to the thread as it
// completes.
//
// Grounded on the review-fan-out shape in the Raven example repo's
// internal/review orchestrator: an errgroup.Group with SetLimit bounding
// concurrency, where each worker captures its own result instead of
// returning it as the group error. That repo's comment ("per-agent
// errors are captured... and do NOT abort the pipeline") states exactly
// the deviation this package makes from errgroup's usual "first error
// cancels the group" idiom — a member failure is data for the thread,
// not a reason to cancel its siblings.
package council

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jbohnslav/kingdom/internal/backend"
	"github.com/jbohnslav/kingdom/internal/config"
	"github.com/jbohnslav/kingdom/internal/member"
	"github.com/jbohnslav/kingdom/internal/thread"
)

// MemberTarget is one resolved council member: its declared name, its
// config-layer definition, and the backend family it dispatches to.
type MemberTarget struct {
	Name   string
	Agent  config.AgentDef
	Family backend.Family
}

// ResolveTargets looks up each named agent's backend family in registry
// and returns the resolved MemberTarget list, in the same order as
// names. It returns an error naming the first agent that is undeclared
// or maps to an unregistered backend.
func ResolveTargets(names []string, agents map[string]config.AgentDef, registry *backend.Registry) ([]MemberTarget, error) {
	targets := make([]MemberTarget, 0, len(names))
	for _, name := range names {
		def, ok := agents[name]
		if !ok {
			return nil, fmt.Errorf("council: undeclared agent %q", name)
		}
		family, err := registry.Lookup(def.Backend)
		if err != nil {
			return nil, fmt.Errorf("council: agent %q: %w", name, err)
		}
		targets = append(targets, MemberTarget{Name: name, Agent: def, Family: family})
	}
	return targets, nil
}

// RunRequest is one council invocation: a prompt fanned out to Targets
// against ThreadID.
type RunRequest struct {
	ThreadID      string
	Phase         string
	UserPrompt    string
	Targets       []MemberTarget
	GlobalPrompts map[string]string

	// ResumeTokens maps a member name to a prior session token, used to
	// resume that member's agent session when the family supports it.
	ResumeTokens map[string]string

	Timeout        time.Duration
	ParallelismCap int // <= 0 means len(Targets), per spec.md §4.6
	WorkDir        string
	StreamDir      string // empty disables stream-file teeing
	Streaming      bool

	// Cancel is shared across every member in this run; cancelling it
	// requests early termination of the whole council invocation. A nil
	// value gets a fresh handle the caller cannot reach — pass one in to
	// retain the ability to cancel.
	Cancel *member.CancelHandle

	// OnResponse is invoked synchronously, once per member, immediately
	// after that member's message has been written to the thread —
	// spec.md §4.6 item 3's "observers see results in completion order"
	// requirement.
	OnResponse func(member.MemberResponse)
}

// Orchestrator runs council invocations against a thread store.
type Orchestrator struct {
	Store *thread.Store
}

// NewOrchestrator returns an Orchestrator writing to store.
func NewOrchestrator(store *thread.Store) *Orchestrator {
	return &Orchestrator{Store: store}
}

// Run implements spec.md §4.6's algorithm: compute each member's final
// prompt, launch up to the parallelism cap concurrently, and as each
// completes, append its message to the thread and invoke the callback
// before the next write starts.
func (o *Orchestrator) Run(req RunRequest) ([]member.MemberResponse, error) {
	limit := req.ParallelismCap
	if limit <= 0 {
		limit = len(req.Targets)
	}
	cancel := req.Cancel
	if cancel == nil {
		cancel = member.NewCancelHandle()
	}

	g := &errgroup.Group{}
	g.SetLimit(limit)

	var mu sync.Mutex
	responses := make([]member.MemberResponse, 0, len(req.Targets))

	for _, target := range req.Targets {
		target := target
		g.Go(func() error {
			prompt := ComposePrompt(req.Phase, target.Agent, req.GlobalPrompts, req.UserPrompt)

			resp := member.Run(member.AgentConfig{
				Name:      target.Name,
				Family:    target.Family,
				Model:     target.Agent.Model,
				ExtraArgs: target.Agent.ExtraArgs,
			}, member.RunInput{
				Prompt:      prompt,
				ResumeToken: req.ResumeTokens[target.Name],
				Timeout:     req.Timeout,
				WorkDir:     req.WorkDir,
				StreamPath:  StreamPath(req.StreamDir, target),
				Streaming:   req.Streaming,
				Cancel:      cancel,
			})

			// Serialize the store-write + callback pair so observers see
			// one member fully recorded before the next write starts
			// (spec.md §4.6 item 3), without forcing members to finish
			// their subprocess work in any particular order.
			mu.Lock()
			defer mu.Unlock()

			if _, err := o.Store.AddMessage(req.ThreadID, thread.Message{
				From: target.Name,
				To:   thread.KingSender,
				Body: composeBody(resp),
			}); err != nil {
				resp.Error = errors.Join(resp.Error, fmt.Errorf("council: append message for %q: %w", target.Name, err))
			}

			responses = append(responses, resp)
			if req.OnResponse != nil {
				req.OnResponse(resp)
			}

			// Deliberate: never return a non-nil error here. A member's
			// failure is recorded as thread data, not propagated as the
			// errgroup's cancellation signal — see the package doc.
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return responses, err
	}
	return responses, nil
}

// StreamPath composes the per-member stream file path the watch loop
// tails, or "" if streaming to disk is disabled for this run. Exported
// so the retry engine can truncate the same path before a relaunch
// (spec.md §4.7's "Stream-file reset").
func StreamPath(dir string, target MemberTarget) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, fmt.Sprintf(".stream-%s%s", target.Name, target.Family.StreamExt))
}

// composeBody derives a member message's thread body from its response,
// applying the error-prefix convention spec.md §4.4 and §4.5 require:
// interrupted runs get `*Interrupted:`, timeouts get `*Timeout:`, other
// failures get `*Error:`, each followed by any partial text. A
// successful response's body is the reply text verbatim — spec.md
// §4.4's "a produced-but-no-error case must never be classified as
// failed" invariant.
func composeBody(resp member.MemberResponse) string {
	if resp.Interrupted {
		return thread.InterruptedPrefix + " run cancelled\n\n" + resp.Text
	}
	if resp.Error == nil {
		return resp.Text
	}

	var runErr *member.RunError
	if errors.As(resp.Error, &runErr) && runErr.Outcome == member.OutcomeTimedOut {
		return thread.TimeoutPrefix + " " + runErr.Error() + "\n\n" + resp.Text
	}
	return thread.ErrorPrefix + " " + resp.Error.Error() + "\n\n" + resp.Text
}
