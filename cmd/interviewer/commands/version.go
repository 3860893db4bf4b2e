package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/interviewer/cmd/interviewer/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), build.String())
	},
}
