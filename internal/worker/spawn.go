// Package worker implements spec.md §4.8's detached background worker:
// run_in_background spawns a fresh child process that runs a council
// invocation to completion and exits, so the driver can return
// immediately and reattach later via the Watch loop.
//
// Grounded on the teacher's internal/agentctl/server/process platform
// split (procattr_unix.go/procattr_windows.go) for the detach mechanics,
// generalized from "new process group" (so a killed parent doesn't take
// the child with it) to "new session" (so the child also loses its
// controlling terminal, since this worker is meant to outlive the shell
// that launched it, not just the parent process).
package worker

import (
	"fmt"
	"os"
	"os/exec"
)

// SpawnRequest names the kingdom-worker binary to launch and the job it
// should run.
type SpawnRequest struct {
	// BinaryPath is the kingdom-worker executable to run. Callers
	// typically pass the co-located binary next to their own
	// os.Executable(), or a path resolved via exec.LookPath.
	BinaryPath string
	Job        Job
}

// Spawn writes the job to a temp file, launches BinaryPath with stdio
// redirected to /dev/null (os.DevNull) and detached from the caller's
// session, and returns without waiting for it to finish.
func Spawn(req SpawnRequest) (pid int, err error) {
	jobPath, err := WriteJobFile(req.Job)
	if err != nil {
		return 0, err
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		os.Remove(jobPath)
		return 0, fmt.Errorf("worker: open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	cmd := exec.Command(req.BinaryPath, "-job", jobPath)
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	detach(cmd)

	if err := cmd.Start(); err != nil {
		os.Remove(jobPath)
		return 0, fmt.Errorf("worker: start: %w", err)
	}

	pid = cmd.Process.Pid

	// The worker owns the job file from here; release the *os.Process
	// handle so the parent never reaps it via Wait, letting the detached
	// process survive the parent's exit.
	_ = cmd.Process.Release()

	return pid, nil
}
