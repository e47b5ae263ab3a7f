package cli

import (
	"github.com/spf13/cobra"

	"github.com/sowinskl/go-syscmd/config"
)

func newConfigCommand(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return err
			}
			return config.Dump(cmd.OutOrStdout(), cfg)
		},
	}
}
