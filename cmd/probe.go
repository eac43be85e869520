package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tanq16/kickstart/internal/downloader"
	"github.com/tanq16/kickstart/internal/output"
	"github.com/tanq16/kickstart/internal/utils"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Show the remote artifact size and the planned chunks",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustLoadConfig(true)
			ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.Timeout)
			defer cancel()

			remote, err := openSource(ctx, cfg)
			if err != nil {
				output.PrintError(fmt.Sprintf("Error opening artifact source: %v", err))
				os.Exit(1)
			}
			start := time.Now()
			size, err := remote.Size(ctx)
			if err != nil {
				output.PrintError(fmt.Sprintf("Error probing artifact size: %v", err))
				os.Exit(1)
			}
			chunks, err := downloader.PlanChunks(size, cfg.Download.ChunkSize)
			if err != nil {
				output.PrintError(fmt.Sprintf("Error planning chunks: %v", err))
				os.Exit(1)
			}
			log.Debug().Str("op", "cmd/probe").Dur("elapsed", time.Since(start)).Msg("Probe complete")

			output.PrintHeader(remote.String())
			fmt.Printf("  %s %s\n", output.FDebug("size       "), output.FInfo(fmt.Sprintf("%s (%d bytes)", utils.FormatBytes(uint64(size)), size)))
			fmt.Printf("  %s %s\n", output.FDebug("chunks     "), output.FInfo(fmt.Sprintf("%d x %s", len(chunks), utils.FormatBytes(uint64(cfg.Download.ChunkSize)))))
			fmt.Printf("  %s %s\n", output.FDebug("concurrency"), output.FInfo(fmt.Sprint(cfg.Download.Concurrency)))
			fmt.Printf("  %s %s\n", output.FDebug("target     "), output.FInfo(cfg.TargetPath()))
		},
	}
}
