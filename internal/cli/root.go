// Package cli implements the sysexec command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// ExitError carries the process exit code sysexec should end with.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewRootCommand builds the sysexec command tree.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "sysexec",
		Short: "Run system commands with watchdogs and retries",
		Long: `sysexec runs a single system command with an optional timeout, captures its
output in full, and retries it when it fails. SIGINT and SIGTERM stop the running
command; when RabbitMQ is configured, so do messages on the stop queue.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.syscmd/config.yaml)")

	root.AddCommand(
		newRunCommand(&cfgFile),
		newWaitCommand(&cfgFile),
		newConfigCommand(&cfgFile),
	)
	return root
}

// ExecuteContext runs the command tree with args.
func ExecuteContext(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
