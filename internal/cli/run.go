package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sowinskl/go-syscmd/syscmd"
)

type runOptions struct {
	timeout     time.Duration
	retries     int
	retryDelay  time.Duration
	description string
}

func newRunCommand(cfgFile *string) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Run a command and print its captured output",
		Long: `Run a command once, or up to --retries more times while it fails.
Standard output and error are printed after the command ends. sysexec exits with
the command's exit code.

--timeout 0 runs the command without a watchdog. It then cannot be stopped
through the RabbitMQ stop queue; SIGINT and SIGTERM still stop it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgFile, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			exec := a.executor(ctx)
			if cmd.Flags().Changed("timeout") {
				exec.Timeout(opts.timeout)
			}
			retries := a.cfg.Retry.Attempts - 1
			if cmd.Flags().Changed("retries") {
				retries = opts.retries
			}
			if retries > 0 {
				delay := a.cfg.Retry.Delay
				if cmd.Flags().Changed("retry-delay") {
					delay = opts.retryDelay
				}
				exec.Retry(retries, delay)
			}

			description := opts.description
			if description == "" {
				description = strings.Join(args, " ")
			}

			res, err := exec.Execute(ctx, description, args...)
			if err != nil {
				var cmdErr *syscmd.Error
				if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
					fmt.Fprint(cmd.OutOrStdout(), cmdErr.Stdout)
					fmt.Fprint(cmd.ErrOrStderr(), cmdErr.Stderr)
					return &ExitError{Code: cmdErr.ExitCode}
				}
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), res.Stdout)
			fmt.Fprint(cmd.ErrOrStderr(), res.Stderr)
			if res.Terminated {
				a.log.WithField("exit_code", res.ExitCode).Warn("Command was stopped before it finished")
				return &ExitError{Code: res.ExitCode}
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "kill the command after this long; negative waits without limit, 0 runs it without a watchdog so stop queue requests are ignored (SIGINT still stops it)")
	cmd.Flags().IntVar(&opts.retries, "retries", 0, "run a failing command again up to this many times (default from config retry.attempts - 1)")
	cmd.Flags().DurationVar(&opts.retryDelay, "retry-delay", time.Second, "pause between retries (default from config)")
	cmd.Flags().StringVar(&opts.description, "description", "", "label used in logs and errors")
	return cmd
}
