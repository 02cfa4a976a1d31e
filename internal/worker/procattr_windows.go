//go:build windows

package worker

import (
	"os/exec"
	"syscall"
)

// detach configures cmd to run detached from the parent's console, the
// closest Windows equivalent of a Unix new session.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | 0x00000008, // DETACHED_PROCESS
	}
}
