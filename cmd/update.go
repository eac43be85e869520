package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Download the application again, replace the installed copy and launch it",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustLoadConfig(true)
			cfg.AlwaysUpdate = true
			if code := runInstaller(cfg); code != 0 {
				os.Exit(code)
			}
		},
	}
}
