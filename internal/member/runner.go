// Package member runs one subprocess invocation of one council member:
// builds the vendor command line, tees its stdout to an optional stream
// file, enforces a timeout with graceful-then-forced termination,
// classifies the outcome, and returns a MemberResponse.
//
// Grounded on the teacher's internal/agentctl/server/process.ProcessRunner
// (process-group spawn, SIGTERM-then-SIGKILL escalation), simplified from
// that type's long-lived multi-process tracking table to a single,
// synchronous, single-shot invocation — Run blocks until the member is
// done, timed out, or cancelled, and owns no state beyond one call.
package member

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/jbohnslav/kingdom/internal/common/logger"
)

// terminationGrace is how long Run waits after sending a graceful
// termination signal before escalating to a force kill, mirroring the
// teacher's two-second grace window in process.ProcessRunner.Stop.
const terminationGrace = 2 * time.Second

// cancelPollInterval is how often Run checks a supplied CancelHandle
// while the child has gone quiet (no stdout lines to poll between).
const cancelPollInterval = 100 * time.Millisecond

// stderrTailBytes bounds how much of stderr the classifier inspects, so
// a vendor CLI that floods stderr cannot blow up classification cost.
const stderrTailBytes = 4096

// Run spawns the agent's subprocess per spec.md §4.5 and blocks until it
// exits, is killed on timeout, or is cancelled via in.Cancel.
func Run(agent AgentConfig, in RunInput) MemberResponse {
	start := time.Now()
	log := logger.Default().With(zap.String("member", agent.Name))

	argv := buildArgv(agent, in)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = in.WorkDir
	cmd.Stdin = nil
	setProcGroup(cmd)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return MemberResponse{Name: agent.Name, Error: &RunError{Outcome: OutcomeNonRetriableFailure, Err: fmt.Errorf("attach stdout: %w", err)}, Outcome: OutcomeNonRetriableFailure}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return MemberResponse{Name: agent.Name, Error: &RunError{Outcome: OutcomeNonRetriableFailure, Err: fmt.Errorf("attach stderr: %w", err)}, Outcome: OutcomeNonRetriableFailure}
	}

	var streamFile *os.File
	if in.StreamPath != "" {
		streamFile, err = os.OpenFile(in.StreamPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return MemberResponse{Name: agent.Name, Error: &RunError{Outcome: OutcomeNonRetriableFailure, Err: fmt.Errorf("open stream file: %w", err)}, Outcome: OutcomeNonRetriableFailure}
		}
		defer streamFile.Close()
	}

	if err := cmd.Start(); err != nil {
		classified := classifyStartErr(err)
		return MemberResponse{Name: agent.Name, Error: &RunError{Outcome: classified, Retriable: ShouldRetry(classified), Err: fmt.Errorf("start: %w", err)}, Outcome: classified}
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cancelled := make(chan struct{})
	stdoutDone := make(chan struct{})
	stderrDone := make(chan struct{})

	go teeLines(stdoutPipe, &stdoutBuf, streamFile, in.Cancel, cancelled, stdoutDone)
	go drainLines(stderrPipe, &stderrBuf, stderrDone)

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	timedOut := false
	interrupted := false

	timeout := in.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	poll := time.NewTicker(cancelPollInterval)
	defer poll.Stop()

waitLoop:
	for {
		select {
		case err = <-waitErr:
			break waitLoop
		case <-timer.C:
			timedOut = true
			err = terminateAndWait(cmd, waitErr)
			break waitLoop
		case <-poll.C:
			if in.Cancel != nil && in.Cancel.Cancelled() {
				interrupted = true
				close(cancelled)
				err = terminateAndWait(cmd, waitErr)
				break waitLoop
			}
		}
	}

	<-stdoutDone
	<-stderrDone

	exitCode := exitCodeOf(err, timedOut, interrupted)
	elapsed := time.Since(start)

	if interrupted {
		log.Warn("member run interrupted", zap.Duration("elapsed", elapsed))
		return MemberResponse{
			Name:        agent.Name,
			Text:        stdoutBuf.String(),
			Interrupted: true,
			Elapsed:     elapsed,
			ExitCode:    exitCode,
		}
	}

	stderrTail := tail(stderrBuf.Bytes(), stderrTailBytes)
	text, sessionToken, parseErr := agent.Family.ParseFinal(stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode)

	outcome := Classify(exitCode, string(stderrTail), text, timedOut)
	if parseErr != nil && outcome == OutcomeSucceeded {
		outcome = OutcomeRetriableFailure
	}

	resp := MemberResponse{
		Name:         agent.Name,
		Text:         text,
		SessionToken: sessionToken,
		Elapsed:      elapsed,
		Outcome:      outcome,
		ExitCode:     exitCode,
		TimedOut:     timedOut,
	}

	if outcome != OutcomeSucceeded {
		runErr := &RunError{Outcome: outcome, Retriable: ShouldRetry(outcome)}
		switch {
		case timedOut:
			runErr.Err = fmt.Errorf("member timed out after %s", timeout)
		case parseErr != nil:
			runErr.Err = fmt.Errorf("parse response: %w", parseErr)
			if resp.Text == "" {
				resp.Text = stdoutBuf.String()
			}
		default:
			runErr.Err = fmt.Errorf("exit code %d: %s", exitCode, string(stderrTail))
		}
		resp.Error = runErr
		log.Warn("member run failed", zap.String("outcome", string(outcome)), zap.Int("exit_code", exitCode))
	} else {
		log.Debug("member run succeeded", zap.Duration("elapsed", elapsed))
	}

	return resp
}

// buildArgv implements spec.md §4.5 item 1: base (or streaming) argv,
// resume flag if supported and a token was supplied, the agent's model
// flag if set, extra args, then the prompt as the final positional.
func buildArgv(agent AgentConfig, in RunInput) []string {
	argv := agent.Family.EffectiveArgv(in.Streaming)
	if in.ResumeToken != "" && agent.Family.SupportsResume() {
		argv = append(argv, agent.Family.ResumeFlag, in.ResumeToken)
	}
	if agent.Model != "" {
		argv = append(argv, "--model", agent.Model)
	}
	argv = append(argv, agent.ExtraArgs...)
	argv = append(argv, in.Prompt)
	return argv
}

// teeLines forwards each stdout line verbatim to buf and, if stream is
// non-nil, to the stream file (append mode, flushed per line) per
// spec.md §4.5 item 3. It polls cancel between lines so a cancellation
// that lands while the child is actively producing output is noticed
// without waiting for the outer ticker.
func teeLines(r io.Reader, buf *bytes.Buffer, stream *os.File, cancel *CancelHandle, cancelled <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	reader := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			select {
			case <-cancelled:
				return
			default:
			}
			if cancel != nil && cancel.Cancelled() {
				return
			}
			buf.Write(line)
			if stream != nil {
				stream.Write(line)
			}
		}
		if err != nil {
			return
		}
	}
}

// drainLines accumulates reader output into buf without teeing, used
// for stderr which is never streamed to the thread.
func drainLines(r io.Reader, buf *bytes.Buffer, done chan<- struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		buf.Write(scanner.Bytes())
		buf.WriteByte('\n')
	}
}

// terminateAndWait sends a graceful termination signal to the process
// group, waits up to terminationGrace for exit, then force-kills.
func terminateAndWait(cmd *exec.Cmd, waitErr <-chan error) error {
	if cmd.Process == nil {
		return nil
	}
	_ = terminateProcessGroup(cmd.Process.Pid)
	select {
	case err := <-waitErr:
		return err
	case <-time.After(terminationGrace):
		_ = killProcessGroup(cmd.Process.Pid)
		return <-waitErr
	}
}

// exitCodeOf recovers the process exit code from cmd.Wait's error, or a
// sentinel for timeout/interruption where the code is meaningless.
func exitCodeOf(waitErr error, timedOut, interrupted bool) int {
	if timedOut || interrupted {
		return -1
	}
	if waitErr == nil {
		return 0
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

// classifyStartErr distinguishes a missing vendor binary (non-retriable,
// command-not-found per spec.md §3) from other spawn failures.
func classifyStartErr(err error) Outcome {
	if _, ok := err.(*exec.Error); ok {
		return OutcomeNonRetriableFailure
	}
	return OutcomeRetriableFailure
}

// tail returns the last n bytes of b, or all of b if shorter.
func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
