package syscmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sowinskl/go-syscmd/failure"
	"github.com/sowinskl/go-syscmd/logging"
	"github.com/sowinskl/go-syscmd/retry"
)

// Timeout values with special meaning.
const (
	// NoWatchdog runs the command without a watchdog. It cannot be stopped
	// through RequestStop, only through its context.
	NoWatchdog time.Duration = 0
	// NoTimeout waits without bound but keeps the command stoppable.
	NoTimeout time.Duration = -1
)

// pipeDrainTimeout bounds how long Wait keeps reading output after the
// process has exited, in case a grandchild that outlived it still holds the
// pipes. Watchdog kills take the whole process group, so this only applies to
// commands that exit on their own.
const pipeDrainTimeout = 2 * time.Second

// Command defines the behavior required to run system commands.
type Command interface {
	Execute(ctx context.Context, description string, command ...string) (Result, error)
}

// Request is a single command execution.
type Request struct {
	// Description labels the command in logs and errors only.
	Description string
	// Command holds the executable followed by its arguments.
	Command []string
	// Timeout > 0 bounds the run, NoTimeout waits forever, NoWatchdog
	// attaches no watchdog at all.
	Timeout time.Duration
}

// Result is the captured outcome of a command that exited with code 0 or was
// destroyed by its watchdog.
type Result struct {
	ExecutionID string
	CommandLine CommandLine
	Stdout      string
	Stderr      string
	ExitCode    int
	Elapsed     time.Duration
	// Terminated is set when the watchdog destroyed the process. This is a
	// requested outcome, not a failure.
	Terminated bool
}

// Executor runs system commands with a configurable timeout and retry policy.
type Executor struct {
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	quoter     Quoter
	log        logrus.FieldLogger

	slot watchdogSlot
}

// Ensure Executor implements Command at compile time
var _ Command = (*Executor)(nil)

// New creates an Executor with no retries and an unbounded, stoppable timeout.
func New() *Executor {
	return &Executor{
		timeout:    NoTimeout,
		retries:    0,
		retryDelay: 1 * time.Second,
		quoter:     DefaultQuoter(),
		log:        logrus.StandardLogger(),
	}
}

// Quick returns an Executor with a 5s timeout.
func Quick() *Executor {
	return New().Timeout(5 * time.Second)
}

// Resilient returns an Executor with a 30s timeout that retries failed
// commands 3 times, 2s apart.
func Resilient() *Executor {
	return New().Timeout(30*time.Second).Retry(3, 2*time.Second)
}

// Timeout sets the timeout used by Execute.
func (e *Executor) Timeout(timeout time.Duration) *Executor {
	e.timeout = timeout
	return e
}

// Retry sets how many times a failed command is run again and the delay
// between runs.
func (e *Executor) Retry(retries int, delay time.Duration) *Executor {
	e.retries = retries
	e.retryDelay = delay
	return e
}

// WithLogger sets the logger.
func (e *Executor) WithLogger(log logrus.FieldLogger) *Executor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	e.log = log
	return e
}

// WithQuoter replaces the platform quoting rules.
func (e *Executor) WithQuoter(q Quoter) *Executor {
	e.quoter = q
	return e
}

// Execute runs command with the configured timeout and retry settings.
func (e *Executor) Execute(ctx context.Context, description string, command ...string) (Result, error) {
	return e.ExecuteWithTimeout(ctx, description, e.timeout, command...)
}

// ExecuteWithoutTimeout runs command with no time bound. It stays stoppable.
func (e *Executor) ExecuteWithoutTimeout(ctx context.Context, description string, command ...string) (Result, error) {
	return e.ExecuteWithTimeout(ctx, description, NoTimeout, command...)
}

// ExecuteWithTimeout runs command with the given timeout and the configured
// retry settings. Launch and execution failures are retried; the last one is
// returned unchanged when retries run out.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, description string, timeout time.Duration, command ...string) (Result, error) {
	req := Request{Description: description, Command: command, Timeout: timeout}
	if e.retries <= 0 {
		return e.Run(ctx, req)
	}
	return retry.OnError(ctx, retry.Exception{
		Kind:     failure.Command,
		Attempts: e.retries + 1,
		Delay:    e.retryDelay,
		Label:    description,
		Logger:   e.log,
	}, func() (Result, error) {
		return e.Run(ctx, req)
	})
}

// RequestStop destroys the command currently tracked by e, if any, and
// reports whether there was one. The interrupted call returns a Result with
// Terminated set.
func (e *Executor) RequestStop() bool {
	w := e.slot.get()
	if w == nil {
		return false
	}
	e.log.WithField(logging.MarkerField, logging.MarkerStop).Debug("Stop requested for the current system command")
	w.destroy(reasonStop)
	return true
}

// Run executes req once.
func (e *Executor) Run(ctx context.Context, req Request) (Result, error) {
	if len(req.Command) == 0 {
		return Result{}, ErrEmptyCommand
	}

	id := uuid.NewString()
	cmdLine := BuildCommandLine(e.quoter, req.Command)
	log := e.log.WithField("execution_id", id)

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(req.Command[0], req.Command[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = pipeDrainTimeout
	setProcessGroup(cmd)

	log.Trace(req.Description)
	log.Tracef("Timeout: %s", timeoutString(req.Timeout))
	log.Trace("Command:")
	log.Trace(cmdLine.String())
	log.WithField(logging.MarkerField, logging.MarkerOSCmd).Info(cmdLine.String())

	// Published before Start so that a concurrent RequestStop is never lost.
	wd := newWatchdog(req.Timeout)
	if req.Timeout != NoWatchdog {
		e.slot.publish(wd)
	}
	stopOnDone := context.AfterFunc(ctx, func() { wd.destroy(reasonContext) })

	inFlight.Inc()
	start := time.Now()
	defer func() {
		stopOnDone()
		wd.release()
		e.slot.clear(wd)
		inFlight.Dec()

		log.Trace("Captured stdout:")
		log.Trace(stdout.String())
		log.Trace("Captured stderr:")
		log.Trace(stderr.String())
	}()

	newError := func(kind failure.Kind, code int, elapsed time.Duration, err error) *Error {
		return &Error{
			kind:        kind,
			Description: req.Description,
			CommandLine: cmdLine,
			ExitCode:    code,
			Elapsed:     elapsed,
			Timeout:     req.Timeout,
			Stdout:      stdout.String(),
			Stderr:      stderr.String(),
			Err:         err,
		}
	}

	if err := cmd.Start(); err != nil {
		elapsed := time.Since(start)
		recordExecution(outcomeLaunch, elapsed)
		return Result{}, newError(failure.Launch, -1, elapsed, err)
	}
	wd.attach(cmd.Process)

	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	if errors.Is(waitErr, exec.ErrWaitDelay) {
		log.Warn("Output pipes stayed open after the process exited; captured output may be incomplete")
		waitErr = nil
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		recordExecution(outcomeLaunch, elapsed)
		return Result{}, newError(failure.Launch, -1, elapsed, waitErr)
	}

	code, signaled := exitStatus(cmd.ProcessState)
	res := Result{
		ExecutionID: id,
		CommandLine: cmdLine,
		Stdout:      stdout.String(),
		Stderr:      stderr.String(),
		ExitCode:    code,
		Elapsed:     elapsed,
	}

	if code == 0 {
		log.Tracef("Captured exit value: %d", code)
		log.Trace("DONE executing system command")
		recordExecution(outcomeSuccess, elapsed)
		return res, nil
	}

	// A sentinel or signal exit only counts as a watchdog kill when a kill was
	// actually requested; otherwise it is the program's own failure.
	if killed, reason := wd.killed(); killed && (signaled || code == SentinelExitCode) {
		log.WithFields(logrus.Fields{"exit_code": code, "reason": reason}).
			Debug("System command was destroyed by its watchdog")
		res.Terminated = true
		recordExecution(outcomeTerminated, elapsed)
		return res, nil
	}

	recordExecution(outcomeFailure, elapsed)
	return Result{}, newError(failure.Execution, code, elapsed, fmt.Errorf("exit status %d", code))
}

// Run is a convenience function for simple command execution
func Run(ctx context.Context, name string, args ...string) (Result, error) {
	return New().Execute(ctx, name, append([]string{name}, args...)...)
}

// Output runs the command and returns its standard output.
func Output(ctx context.Context, name string, args ...string) (string, error) {
	res, err := Run(ctx, name, args...)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

func timeoutString(timeout time.Duration) string {
	switch {
	case timeout > 0:
		return timeout.String()
	case timeout < 0:
		return "none (stoppable)"
	default:
		return "none (no watchdog)"
	}
}
