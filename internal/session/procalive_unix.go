//go:build unix

package session

import (
	"os"
	"syscall"
)

// processAlive sends the null signal, the standard Unix idiom for
// probing a pid without affecting it: delivery fails with ESRCH if the
// process is gone.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
