package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tanq16/kickstart/internal/config"
	"github.com/tanq16/kickstart/internal/downloader"
	"github.com/tanq16/kickstart/internal/installer"
	"github.com/tanq16/kickstart/internal/output"
	"github.com/tanq16/kickstart/internal/process"
	"github.com/tanq16/kickstart/internal/source"
	"github.com/tanq16/kickstart/internal/utils"
)

var KickstartVersion = "dev"

var rootCmd = &cobra.Command{
	Use:   "kickstart",
	Short: "Kickstart downloads, installs and launches an application",
	Long: "Kickstart fetches the configured application in parallel chunks, installs it\n" +
		"into the install directory and launches it. Configuration is read from\n" +
		config.FileName + " and " + config.EnvPrefix + "* environment variables.",
	Version: KickstartVersion,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig(true)
		if code := runInstaller(cfg); code != 0 {
			os.Exit(code)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newCleanCmd())
}

// mustLoadConfig loads configuration and initialises logging. Without
// requireBaseURL a missing base URL is tolerated.
func mustLoadConfig(requireBaseURL bool) config.Config {
	cfg, err := config.Load()
	if err != nil && (requireBaseURL || !errors.Is(err, config.ErrNoBaseURL)) {
		output.PrintError(fmt.Sprintf("Error loading configuration: %v", err))
		os.Exit(1)
	}
	utils.InitLogger(cfg.Debug)
	log.Debug().Str("op", "cmd/root").Str("installDir", cfg.InstallDir).Str("base", cfg.BaseURL).Msg("Configuration loaded")
	return cfg
}

func openSource(ctx context.Context, cfg config.Config) (source.Source, error) {
	return source.Open(ctx, source.Options{
		BaseURL:    cfg.BaseURL,
		HTTP:       cfg.HTTP,
		AWSProfile: cfg.AWSProfile,
		RateLimit:  cfg.Download.RateLimit,
	})
}

// runInstaller wires the orchestrator to the console and returns the process
// exit code.
func runInstaller(cfg config.Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remote, err := openSource(ctx, cfg)
	if err != nil {
		output.PrintError(fmt.Sprintf("Error opening artifact source: %v", err))
		return 1
	}

	var renderer downloader.Renderer
	if output.IsTerminal(os.Stdout) {
		closeLog, err := redirectLog(cfg.InstallDir)
		if err != nil {
			log.Warn().Str("op", "cmd/root").Err(err).Msg("Error opening log file, logging to stderr")
		} else {
			defer closeLog()
		}
		renderer = output.NewRenderer(os.Stdout, "Downloading "+cfg.Executable)
	}

	orchestrator := installer.New(cfg, installer.Dependencies{
		Remote:   remote,
		Notifier: output.NewConsoleNotifier(os.Stdin, os.Stdout),
		Runner:   process.NewExecRunner(),
		Renderer: renderer,
	})
	state, err := orchestrator.Run(ctx)
	if err != nil {
		log.Debug().Str("op", "cmd/root").Stringer("state", state).Err(err).Msg("Run ended with failure")
		return 1
	}
	log.Debug().Str("op", "cmd/root").Stringer("state", state).Msg("Run complete")
	return 0
}

// redirectLog sends log lines to the install directory log file so they do
// not tear the progress display.
func redirectLog(installDir string) (func() error, error) {
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(installDir, utils.LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	utils.SetLogOutput(f)
	return f.Close, nil
}
