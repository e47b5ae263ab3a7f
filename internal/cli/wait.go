package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sowinskl/go-syscmd/retry"
)

func newWaitCommand(cfgFile *string) *cobra.Command {
	var (
		attempts int
		delay    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait [flags] -- command [args...]",
		Short: "Re-run a command until it exits 0",
		Long: `Re-run a probe command until it succeeds or the attempts are used up.
Exits 0 once the probe succeeded and 1 if it never did. Probe output is not printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgFile, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			p := retry.Predicate{
				Attempts: a.cfg.Retry.WaitAttempts,
				Delay:    a.cfg.Retry.WaitDelay,
				Label:    strings.Join(args, " "),
				Logger:   a.log,
			}
			if cmd.Flags().Changed("attempts") {
				p.Attempts = attempts
			}
			if cmd.Flags().Changed("delay") {
				p.Delay = delay
			}

			exec := a.executor(ctx)
			ok, err := retry.UntilTrue(ctx, p, func() bool {
				res, err := exec.Execute(ctx, p.Label, args...)
				if err != nil {
					a.log.WithError(err).Debug("Probe failed")
					return false
				}
				return !res.Terminated
			})
			if err != nil {
				return err
			}
			if !ok {
				a.log.Warnf("%q did not succeed within %d attempts", p.Label, p.Attempts)
				return &ExitError{Code: 1}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&attempts, "attempts", 10, "maximum number of probe runs (default from config)")
	cmd.Flags().DurationVar(&delay, "delay", time.Second, "pause between probe runs (default from config)")
	return cmd
}
