package cmd

import (
	"archive/zip"
	"fmt"
	"text/tabwriter"

	"armor-tools/go/pkg/library"

	"github.com/spf13/cobra"
)

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info LIBRARY",
		Short: "List the members of a library archive in stored order.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := library.Members(args[0])
			if err != nil {
				return fmt.Errorf("read library %s: %w", args[0], err)
			}
			a.log.Debug("archive", "read", "success", "Read library archive", "path", args[0], "members", len(members))

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE\tMETHOD")
			for _, m := range members {
				fmt.Fprintf(w, "%s\t%d\t%s\n", m.Name, m.Size, methodName(m.Method))
			}
			return w.Flush()
		},
	}
}

func methodName(m uint16) string {
	switch m {
	case zip.Store:
		return "stored"
	case zip.Deflate:
		return "deflated"
	}
	return fmt.Sprintf("method(%d)", m)
}
