package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "dev"
var Commit = "none"
var Date = "unknown"

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of armor-packer",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			a.log.Debug("system", "version", "info", "armor-packer version information", "version", Version, "commit", Commit, "date", Date)
			fmt.Fprintf(cmd.OutOrStdout(), "armor-packer version %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}
