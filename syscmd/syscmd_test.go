package syscmd

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sowinskl/go-syscmd/failure"
	"github.com/sowinskl/go-syscmd/logging"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires POSIX utilities")
	}
}

// waitTracked blocks until e tracks an in-flight command.
func waitTracked(t *testing.T, e *Executor) {
	t.Helper()
	require.Eventually(t, func() bool { return e.slot.get() != nil }, 5*time.Second, 5*time.Millisecond)
}

func TestNew(t *testing.T) {
	cmd := New()
	require.NotNil(t, cmd)
	assert.Equal(t, NoTimeout, cmd.timeout)
	assert.Equal(t, 0, cmd.retries)
	assert.Equal(t, 1*time.Second, cmd.retryDelay)
}

func TestChaining(t *testing.T) {
	cmd := New().
		Timeout(10*time.Second).
		Retry(2, 500*time.Millisecond)

	assert.Equal(t, 10*time.Second, cmd.timeout)
	assert.Equal(t, 2, cmd.retries)
	assert.Equal(t, 500*time.Millisecond, cmd.retryDelay)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, 5*time.Second, Quick().timeout)

	r := Resilient()
	assert.Equal(t, 30*time.Second, r.timeout)
	assert.Equal(t, 3, r.retries)
	assert.Equal(t, 2*time.Second, r.retryDelay)
}

func TestExecute_Success(t *testing.T) {
	skipOnWindows(t)

	res, err := New().ExecuteWithoutTimeout(context.Background(), "say hello", "echo", "hello world")

	require.NoError(t, err)
	assert.Equal(t, "hello world", strings.TrimSpace(res.Stdout))
	assert.Empty(t, res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.Terminated)
	assert.NotEmpty(t, res.ExecutionID)
	assert.Equal(t, CommandLine("echo hello world"), res.CommandLine)
}

func TestExecute_CapturesBothStreamsExactly(t *testing.T) {
	skipOnWindows(t)

	for _, timeout := range []time.Duration{NoWatchdog, NoTimeout} {
		res, err := New().ExecuteWithTimeout(context.Background(), "streams", timeout,
			"sh", "-c", "printf out; printf err >&2")

		require.NoError(t, err)
		assert.Equal(t, "out", res.Stdout)
		assert.Equal(t, "err", res.Stderr)
	}
}

func TestExecute_NonZeroExit(t *testing.T) {
	skipOnWindows(t)

	_, err := New().Execute(context.Background(), "always fails", "false")

	var cmdErr *Error
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, failure.Execution, cmdErr.Kind())
	assert.Equal(t, 1, cmdErr.ExitCode)
	assert.True(t, failure.Matches(err, failure.Command))
	assert.Contains(t, err.Error(), "Command: false")
	assert.Contains(t, err.Error(), "Captured exit value: 1")
	assert.Contains(t, err.Error(), "<stdout is empty>")
	assert.Contains(t, err.Error(), "<stderr is empty>")
}

func TestExecute_FailureEchoesStreams(t *testing.T) {
	skipOnWindows(t)

	_, err := New().Execute(context.Background(), "noisy", "sh", "-c", "echo partial; echo broken >&2; exit 3")

	var cmdErr *Error
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, "partial\n", cmdErr.Stdout)
	assert.Equal(t, "broken\n", cmdErr.Stderr)
	assert.Contains(t, err.Error(), "Captured stdout: partial")
	assert.Contains(t, err.Error(), "Captured stderr: broken")
	assert.Contains(t, err.Error(), `for "noisy"`)
}

func TestExecute_SentinelWithoutStopIsFailure(t *testing.T) {
	skipOnWindows(t)

	_, err := New().Execute(context.Background(), "own 143", "sh", "-c", "exit 143")

	var cmdErr *Error
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, SentinelExitCode, cmdErr.ExitCode)
}

func TestExecute_NonExistentCommand(t *testing.T) {
	_, err := New().Execute(context.Background(), "missing", "this-command-should-not-exist-12345")

	var cmdErr *Error
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, failure.Launch, cmdErr.Kind())
	assert.Equal(t, -1, cmdErr.ExitCode)
	assert.ErrorIs(t, err, exec.ErrNotFound)
}

func TestExecute_EmptyCommand(t *testing.T) {
	_, err := New().Execute(context.Background(), "nothing")
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestExecute_Timeout(t *testing.T) {
	skipOnWindows(t)

	start := time.Now()
	res, err := New().Timeout(100*time.Millisecond).Execute(context.Background(), "slow", "sleep", "5")

	require.NoError(t, err)
	assert.True(t, res.Terminated)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRequestStop_DestroysInFlightCommand(t *testing.T) {
	skipOnWindows(t)

	e := New()
	done := make(chan Result, 1)
	go func() {
		res, err := e.ExecuteWithoutTimeout(context.Background(), "long", "sleep", "30")
		assert.NoError(t, err)
		done <- res
	}()

	waitTracked(t, e)
	assert.True(t, e.RequestStop())

	select {
	case res := <-done:
		assert.True(t, res.Terminated)
	case <-time.After(5 * time.Second):
		t.Fatal("command was not stopped")
	}
	assert.Nil(t, e.slot.get())
}

func TestRequestStop_NoExecutionIsNoop(t *testing.T) {
	e := New()
	assert.NotPanics(t, func() {
		assert.False(t, e.RequestStop())
	})
}

func TestRequestStop_NoWatchdogIsNotTracked(t *testing.T) {
	skipOnWindows(t)

	e := New()
	done := make(chan error, 1)
	go func() {
		_, err := e.ExecuteWithTimeout(context.Background(), "untracked", NoWatchdog, "sleep", "0.3")
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, e.RequestStop())
	assert.NoError(t, <-done)
}

func TestRequestStop_OtherExecutorsUnaffected(t *testing.T) {
	skipOnWindows(t)

	a, b := New(), New()
	done := make(chan Result, 1)
	go func() {
		res, _ := a.ExecuteWithoutTimeout(context.Background(), "a", "sleep", "0.3")
		done <- res
	}()

	waitTracked(t, a)
	assert.False(t, b.RequestStop())
	assert.False(t, (<-done).Terminated)
}

func TestExecute_ContextCancellation(t *testing.T) {
	skipOnWindows(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := New().ExecuteWithTimeout(ctx, "cancelled", NoWatchdog, "sleep", "5")

	require.NoError(t, err)
	assert.True(t, res.Terminated)
}

func TestExecute_SlotClearedAfterFailure(t *testing.T) {
	skipOnWindows(t)

	e := New()
	_, err := e.Execute(context.Background(), "fails", "false")
	require.Error(t, err)
	assert.Nil(t, e.slot.get())

	_, err = e.Execute(context.Background(), "missing", "this-command-should-not-exist-12345")
	require.Error(t, err)
	assert.Nil(t, e.slot.get())
}

func TestExecute_WithRetries(t *testing.T) {
	skipOnWindows(t)

	marks := filepath.Join(t.TempDir(), "runs")
	script := "echo run >> '" + marks + "'; exit 1"

	_, err := New().Retry(2, 10*time.Millisecond).Execute(context.Background(), "flaky", "sh", "-c", script)

	var cmdErr *Error
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 1, cmdErr.ExitCode)

	data, readErr := os.ReadFile(marks)
	require.NoError(t, readErr)
	assert.Equal(t, 3, strings.Count(string(data), "run"))
}

func TestExecute_LogsCommandLineWithMarker(t *testing.T) {
	skipOnWindows(t)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)

	_, err := New().WithLogger(logger).Execute(context.Background(), "marked", "echo", "hi")
	require.NoError(t, err)

	var marked []string
	for _, e := range hook.AllEntries() {
		if e.Data[logging.MarkerField] == logging.MarkerOSCmd {
			marked = append(marked, e.Message)
		}
	}
	assert.Equal(t, []string{"echo hi"}, marked)
}

func TestExecute_RecordsMetrics(t *testing.T) {
	skipOnWindows(t)

	before := testutil.ToFloat64(executions.WithLabelValues(outcomeFailure))
	_, err := New().Execute(context.Background(), "fails", "false")
	require.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(executions.WithLabelValues(outcomeFailure)))
	assert.Equal(t, float64(0), testutil.ToFloat64(inFlight))
}

func TestOutput(t *testing.T) {
	skipOnWindows(t)

	out, err := Output(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	_, err = Output(context.Background(), "false")
	assert.True(t, errors.As(err, new(*Error)))
}

func TestExecutionTimeMsg(t *testing.T) {
	assert.Equal(t, `1.5s for "probe" (timeout 2s)`, executionTimeMsg(1500*time.Millisecond, 2*time.Second, "probe"))
	assert.Equal(t, `3s for "probe" (timeout of 2s exceeded)`, executionTimeMsg(3*time.Second, 2*time.Second, "probe"))
	assert.Equal(t, `10ms for "probe" (no timeout)`, executionTimeMsg(10*time.Millisecond, NoTimeout, "probe"))
}

func TestError_LaunchOmitsExitValue(t *testing.T) {
	err := &Error{
		kind:        failure.Launch,
		Description: "missing tool",
		CommandLine: "missing",
		ExitCode:    -1,
		Elapsed:     3 * time.Millisecond,
		Timeout:     time.Second,
		Err:         exec.ErrNotFound,
	}

	msg := err.Error()
	assert.Contains(t, msg, "Command: missing")
	assert.NotContains(t, msg, "Captured exit value")
	assert.Contains(t, msg, `Execution time: 3ms for "missing tool" (timeout 1s)`)
	assert.Contains(t, msg, "<stdout is empty>")
	assert.Contains(t, msg, "<stderr is empty>")
	assert.ErrorIs(t, err, exec.ErrNotFound)
	assert.True(t, failure.Matches(err, failure.Command))
}

func TestExecute_TimeoutKillsChildProcesses(t *testing.T) {
	skipOnWindows(t)

	// The trailing command keeps sh from exec'ing sleep, so sleep is a
	// grandchild holding the output pipes.
	start := time.Now()
	res, err := New().Timeout(100*time.Millisecond).Execute(context.Background(), "grandchild", "sh", "-c", "sleep 5; true")
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, res.Terminated)
	assert.Less(t, elapsed, time.Second)
}

func TestRequestStop_KillsChildProcesses(t *testing.T) {
	skipOnWindows(t)

	e := New()
	done := make(chan Result, 1)
	go func() {
		res, err := e.ExecuteWithoutTimeout(context.Background(), "grandchild", "sh", "-c", "sleep 30; true")
		assert.NoError(t, err)
		done <- res
	}()

	waitTracked(t, e)
	start := time.Now()
	e.RequestStop()

	select {
	case res := <-done:
		assert.True(t, res.Terminated)
		assert.Less(t, time.Since(start), time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("command was not stopped")
	}
}

func TestExecute_LaunchFailureReportsExecutionTime(t *testing.T) {
	_, err := New().Execute(context.Background(), "missing", "this-command-should-not-exist-12345")

	var cmdErr *Error
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, failure.Launch, cmdErr.Kind())
	assert.Equal(t, -1, cmdErr.ExitCode)
	assert.Contains(t, err.Error(), "Execution time:")
	assert.NotContains(t, err.Error(), "Captured exit value")
}
