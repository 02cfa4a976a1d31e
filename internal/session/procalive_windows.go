//go:build windows

package session

import (
	"os/exec"
	"strconv"
	"strings"
)

// processAlive shells out to tasklist, since Go's Signal on Windows
// does not support probing a pid without sending it an actual signal.
func processAlive(pid int) bool {
	out, err := exec.Command("tasklist", "/FI", "PID eq "+strconv.Itoa(pid), "/NH").Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), strconv.Itoa(pid))
}
