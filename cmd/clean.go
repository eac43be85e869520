package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tanq16/kickstart/internal/installer"
	"github.com/tanq16/kickstart/internal/output"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove leftover staging and log files from the install directory",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustLoadConfig(false)
			removed, err := installer.Clean(cfg)
			for _, path := range removed {
				output.PrintDetail(fmt.Sprintf("  removed %s", path))
			}
			if err != nil {
				output.PrintError(fmt.Sprintf("Error cleaning up: %v", err))
				os.Exit(1)
			}
			if len(removed) == 0 {
				output.PrintInfo("Nothing to clean")
				return
			}
			output.PrintSuccess("Temporary files cleaned up")
		},
	}
}
