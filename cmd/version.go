package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vampfi/bonus-engine/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of the bonus engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("%s (commit %s)\n", version.GetVersion(), version.GetCommit())
		return nil
	},
}
