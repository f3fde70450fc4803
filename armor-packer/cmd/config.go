package cmd

import (
	"fmt"

	"armor-tools/go/pkg/config"

	"github.com/spf13/cobra"
)

func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := config.Render(a.cfg)
			if err != nil {
				return err
			}
			if a.configUsed != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", a.configUsed)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
