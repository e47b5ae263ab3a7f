//go:build windows

package syscmd

import (
	"os"
	"os/exec"
)

// SentinelExitCode is the exit code TerminateProcess leaves behind when a
// process is killed.
const SentinelExitCode = 1

func exitStatus(state *os.ProcessState) (code int, signaled bool) {
	if state == nil {
		return -1, false
	}
	return state.ExitCode(), false
}

func setProcessGroup(*exec.Cmd) {}

// TODO: assign the process to a job object so children are terminated too.
func killProcessTree(p *os.Process) error {
	return p.Kill()
}
