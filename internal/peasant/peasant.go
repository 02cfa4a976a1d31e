// Package peasant wraps the Member runner in a loop-until-done harness
// for autonomous ticket execution, per spec.md §4.12: compose a prompt
// from the ticket body and prior worklog, run one member invocation,
// append the response to the ticket's thread, inspect it for a stop
// sentinel, and repeat until a sentinel fires or max_iterations is
// spent.
package peasant

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jbohnslav/kingdom/internal/common/logger"
	"github.com/jbohnslav/kingdom/internal/config"
	"github.com/jbohnslav/kingdom/internal/council"
	"github.com/jbohnslav/kingdom/internal/member"
	"github.com/jbohnslav/kingdom/internal/thread"
)

// Request describes one peasant run.
type Request struct {
	ThreadID      string
	TicketBody    string
	Agent         member.AgentConfig
	AgentDef      config.AgentDef
	GlobalPrompts map[string]string
	Timeout       time.Duration
	MaxIterations int
	WorkDir       string
	StreamDir     string
	Cancel        *member.CancelHandle
}

// Result summarizes how a peasant run ended.
type Result struct {
	Sentinel   Sentinel
	Detail     string
	Iterations int
	TimedOut   bool
	Err        error
}

// Harness runs peasant loops against a thread store, appending every
// iteration's response as a worklog message.
type Harness struct {
	Store  *thread.Store
	logger *logger.Logger
}

// NewHarness returns a Harness writing worklog messages to store.
func NewHarness(store *thread.Store) *Harness {
	return &Harness{Store: store, logger: logger.Default().With(zap.String("component", "peasant"))}
}

// Run drives the loop described in spec.md §4.12. It stops as soon as
// an iteration's response carries a done/blocked/failed sentinel, as
// soon as an iteration times out or errors (also a terminal state), or
// after req.MaxIterations iterations with no sentinel observed.
func (h *Harness) Run(req Request) (Result, error) {
	if req.MaxIterations <= 0 {
		return Result{}, fmt.Errorf("peasant: max_iterations must be positive, got %d", req.MaxIterations)
	}

	var worklog []string
	var resumeToken string

	for iteration := 1; iteration <= req.MaxIterations; iteration++ {
		prompt := composeIterationPrompt(req.AgentDef, req.GlobalPrompts, req.TicketBody, worklog)

		streamPath := ""
		if req.StreamDir != "" {
			streamPath = council.StreamPath(req.StreamDir, council.MemberTarget{Name: req.Agent.Name, Family: req.Agent.Family})
		}

		resp := member.Run(req.Agent, member.RunInput{
			Prompt:      prompt,
			ResumeToken: resumeToken,
			Timeout:     req.Timeout,
			WorkDir:     req.WorkDir,
			StreamPath:  streamPath,
			Streaming:   req.Agent.Family.StreamingBaseArgv != nil,
			Cancel:      req.Cancel,
		})
		if resp.SessionToken != "" {
			resumeToken = resp.SessionToken
		}

		body := composeWorklogBody(resp)
		if _, err := h.Store.AddMessage(req.ThreadID, thread.Message{
			From: req.Agent.Name,
			To:   thread.KingSender,
			Body: body,
		}); err != nil {
			return Result{Iterations: iteration}, fmt.Errorf("peasant: append worklog message: %w", err)
		}
		worklog = append(worklog, body)

		h.logger.Info("peasant iteration complete",
			zap.String("thread_id", req.ThreadID),
			zap.Int("iteration", iteration),
			zap.Bool("timed_out", resp.TimedOut),
			zap.Bool("error", resp.Error != nil))

		if resp.Interrupted {
			return Result{Sentinel: SentinelNone, Iterations: iteration}, nil
		}
		if resp.TimedOut {
			return Result{Sentinel: SentinelNone, Iterations: iteration, TimedOut: true}, nil
		}
		if resp.Error != nil {
			return Result{Sentinel: SentinelNone, Iterations: iteration, Err: resp.Error}, nil
		}

		if sentinel, detail := detectSentinel(resp.Text); sentinel != SentinelNone {
			return Result{Sentinel: sentinel, Detail: detail, Iterations: iteration}, nil
		}
	}

	return Result{Sentinel: SentinelNone, Iterations: req.MaxIterations}, nil
}

// composeIterationPrompt builds the user-prompt part of ComposePrompt
// from the ticket body and the worklog accumulated so far, then routes
// it through the shared council.ComposePrompt so the peasant phase
// picks up the same safety preamble and phase/persona prompt precedence
// every other phase does.
func composeIterationPrompt(agent config.AgentDef, globalPrompts map[string]string, ticketBody string, worklog []string) string {
	var b strings.Builder
	b.WriteString(ticketBody)
	for i, entry := range worklog {
		fmt.Fprintf(&b, "\n\n--- worklog entry %d ---\n%s", i+1, entry)
	}
	return council.ComposePrompt(config.PhasePeasant, agent, globalPrompts, b.String())
}

func composeWorklogBody(resp member.MemberResponse) string {
	switch {
	case resp.Interrupted:
		return thread.InterruptedPrefix + " " + resp.Text
	case resp.TimedOut:
		return thread.TimeoutPrefix + " " + resp.Text
	case resp.Error != nil:
		return thread.ErrorPrefix + " " + resp.Error.Error()
	default:
		return resp.Text
	}
}
