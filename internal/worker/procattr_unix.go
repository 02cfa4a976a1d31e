//go:build unix

package worker

import (
	"os/exec"
	"syscall"
)

// detach configures cmd to start a new session, fully severing it from
// the parent's controlling terminal and process group so the parent can
// exit without sending the worker a SIGHUP.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
