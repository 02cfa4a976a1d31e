// Package retry implements spec.md §4.7: given a thread's current turn,
// find the expected responders with no successful reply yet and
// re-invoke the council orchestrator for just that subset, reusing the
// original human prompt.
package retry

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jbohnslav/kingdom/internal/council"
	"github.com/jbohnslav/kingdom/internal/member"
	"github.com/jbohnslav/kingdom/internal/session"
	"github.com/jbohnslav/kingdom/internal/thread"
)

// ErrNoHumanMessage means the thread has no king-authored message yet,
// so there is no turn to retry.
var ErrNoHumanMessage = errors.New("retry: thread has no human message yet")

// MissingResponders computes the latest turn's expected responders (the
// last human message's `to` header, "all" resolved against
// declaredMembers) that have no subsequent non-failure reply, per
// spec.md §4.10's derivation and §4.7's "identify which expected members
// have no subsequent non-error reply in the same turn" operation.
func MissingResponders(messages []thread.Message, declaredMembers []string) ([]string, thread.Message, error) {
	human, ok := thread.LastHumanMessage(messages)
	if !ok {
		return nil, thread.Message{}, ErrNoHumanMessage
	}

	expected := human.ToNames(declaredMembers)
	turn := thread.CurrentTurn(messages)
	responded := thread.RespondedMembers(turn, human.Seq)

	var missing []string
	for _, name := range expected {
		if !responded[name] {
			missing = append(missing, name)
		}
	}
	return missing, human, nil
}

// Request bundles what Run needs beyond the thread's own message
// history. Targets must cover every name MissingResponders could return
// (i.e. every declared member), since Run only learns which subset is
// actually missing after inspecting the thread.
type Request struct {
	ThreadID        string
	DeclaredMembers []string
	Targets         map[string]council.MemberTarget
	GlobalPrompts   map[string]string
	Phase           string
	Timeout         time.Duration
	WorkDir         string
	StreamDir       string
	Streaming       bool

	// Sessions supplies each missing member's last known session token
	// so the retried run resumes rather than starting fresh — spec.md
	// §4.7's "Session preservation" default. Nil disables resume-token
	// lookup (the run still proceeds, just without resume).
	Sessions *session.Store

	Cancel     *member.CancelHandle
	OnResponse func(member.MemberResponse)
}

// Run re-invokes the council orchestrator for exactly the members
// missing a reply in the thread's latest turn. It returns (nil, nil)
// when nothing is missing — retrying a fully-responded turn is a no-op,
// not an error.
func Run(orch *council.Orchestrator, messages []thread.Message, req Request) ([]member.MemberResponse, error) {
	missing, human, err := MissingResponders(messages, req.DeclaredMembers)
	if err != nil {
		return nil, err
	}
	if len(missing) == 0 {
		return nil, nil
	}

	targets := make([]council.MemberTarget, 0, len(missing))
	resumeTokens := make(map[string]string, len(missing))

	for _, name := range missing {
		target, ok := req.Targets[name]
		if !ok {
			return nil, fmt.Errorf("retry: %q has no resolved target", name)
		}
		targets = append(targets, target)

		if req.StreamDir != "" {
			if err := resetStreamFile(req.StreamDir, target); err != nil {
				return nil, err
			}
		}
		if req.Sessions != nil {
			if sess, ok, err := req.Sessions.GetAgent(name); err == nil && ok {
				resumeTokens[name] = sess.SessionToken
			}
		}
	}

	return orch.Run(council.RunRequest{
		ThreadID:       req.ThreadID,
		Phase:          req.Phase,
		UserPrompt:     human.Body,
		Targets:        targets,
		GlobalPrompts:  req.GlobalPrompts,
		ResumeTokens:   resumeTokens,
		Timeout:        req.Timeout,
		WorkDir:        req.WorkDir,
		StreamDir:      req.StreamDir,
		Streaming:      req.Streaming,
		Cancel:         req.Cancel,
		OnResponse:     req.OnResponse,
		ParallelismCap: len(targets),
	})
}

// resetStreamFile removes a member's existing stream file before
// relaunch, per spec.md §4.7's "Stream-file reset": a stale file would
// otherwise leave the Watch loop's tail offset pointed into the
// previous turn's content. Absence is not an error — a member that
// never streamed anything (e.g. it failed before producing output) has
// nothing to reset.
func resetStreamFile(dir string, target council.MemberTarget) error {
	path := council.StreamPath(dir, target)
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("retry: reset stream file for %q: %w", target.Name, err)
	}
	return nil
}
