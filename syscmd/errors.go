package syscmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sowinskl/go-syscmd/failure"
)

var ErrEmptyCommand = errors.New("syscmd: at least one command line token is required, denoting the executable")

// Error describes a command that could not be launched or that exited with a
// failing code. The message carries everything needed to diagnose the
// command without running it again.
type Error struct {
	kind failure.Kind

	Description string
	CommandLine CommandLine
	// ExitCode is -1 when the process never produced one.
	ExitCode int
	Elapsed  time.Duration
	Timeout  time.Duration
	Stdout   string
	Stderr   string
	Err      error
}

// Kind is failure.Launch or failure.Execution.
func (e *Error) Kind() failure.Kind { return e.kind }

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("failed to execute a system command")
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	fmt.Fprintf(&b, "\nCommand: %s", e.CommandLine)
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, "\nCaptured exit value: %d", e.ExitCode)
	}
	fmt.Fprintf(&b, "\nExecution time: %s", executionTimeMsg(e.Elapsed, e.Timeout, e.Description))
	fmt.Fprintf(&b, "\nCaptured stdout: %s", orPlaceholder(e.Stdout, "<stdout is empty>"))
	fmt.Fprintf(&b, "\nCaptured stderr: %s", orPlaceholder(e.Stderr, "<stderr is empty>"))
	return b.String()
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func executionTimeMsg(elapsed, timeout time.Duration, description string) string {
	msg := fmt.Sprintf("%s for %q", elapsed.Round(time.Millisecond), description)
	switch {
	case timeout > 0 && elapsed >= timeout:
		msg += fmt.Sprintf(" (timeout of %s exceeded)", timeout)
	case timeout > 0:
		msg += fmt.Sprintf(" (timeout %s)", timeout)
	default:
		msg += " (no timeout)"
	}
	return msg
}
