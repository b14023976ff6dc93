package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rax0nrax/punyfunny/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print ankh version info",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.GetInfo("ankh")
			if jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ankh\n")
			fmt.Fprintf(cmd.OutOrStdout(), " - version: %s\n", info.Version)
			fmt.Fprintf(cmd.OutOrStdout(), " - git: %s\n", version.GetShortCommit())
			fmt.Fprintf(cmd.OutOrStdout(), " - built: %s\n", info.BuildDate)
			return nil
		},
	}
}
