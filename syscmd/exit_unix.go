//go:build unix

package syscmd

import (
	"os"
	"os/exec"
	"syscall"
)

// SentinelExitCode is the exit code of a process ended by a termination
// signal (128 + SIGTERM).
const SentinelExitCode = 143

// exitStatus reports the exit code of state. A signalled process gets the
// shell convention 128+signal.
func exitStatus(state *os.ProcessState) (code int, signaled bool) {
	if state == nil {
		return -1, false
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal()), true
	}
	return state.ExitCode(), false
}

// setProcessGroup starts cmd as the leader of a new process group so the
// watchdog can take its children down with it.
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// killProcessTree kills the process group led by p, falling back to p alone
// when p does not lead a group.
func killProcessTree(p *os.Process) error {
	if err := syscall.Kill(-p.Pid, syscall.SIGKILL); err == nil {
		return nil
	}
	return p.Kill()
}
