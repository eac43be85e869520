// Package installer drives a run from download to launch: it decides whether
// the artifact must be fetched, replaces the installed executable and hands
// control to it.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tanq16/kickstart/internal/config"
	"github.com/tanq16/kickstart/internal/downloader"
	"github.com/tanq16/kickstart/internal/process"
	"github.com/tanq16/kickstart/internal/utils"
)

const (
	notifyTitle       = "Kickstart"
	installDirPattern = "{install_dir}"
)

type Dependencies struct {
	Remote   downloader.Remote
	Notifier Notifier
	Runner   ProcessRunner
	Renderer downloader.Renderer
}

// Orchestrator owns the installation state for a single run.
type Orchestrator struct {
	cfg   config.Config
	deps  Dependencies
	fs    fileSystem
	state State
	// renameOverwrites is set where rename replaces an existing file in one
	// step. Elsewhere the target is removed first.
	renameOverwrites bool
}

func New(cfg config.Config, deps Dependencies) *Orchestrator {
	return &Orchestrator{
		cfg:              cfg,
		deps:             deps,
		fs:               osFS{},
		state:            StateNotInstalled,
		renameOverwrites: runtime.GOOS != "windows",
	}
}

func (o *Orchestrator) State() State {
	return o.state
}

// Run installs the executable when needed and launches it, returning once the
// launched process exits. Every failure is reported to the user exactly once
// and returned along with the state the run stopped in.
func (o *Orchestrator) Run(ctx context.Context) (State, error) {
	target := o.cfg.TargetPath()
	if err := o.fs.MkdirAll(o.cfg.InstallDir, 0o755); err != nil {
		return o.state, o.fail(&UnexpectedError{Op: "preparing install directory", Err: err})
	}
	o.welcome()

	installed, err := o.exists(target)
	if err != nil {
		return o.state, o.fail(&UnexpectedError{Op: "checking installed executable", Err: err})
	}
	if installed {
		o.state = StateInstalled
	}

	if !installed || o.cfg.AlwaysUpdate {
		if !installed {
			o.offerExclusion(ctx)
		}
		if err := o.install(ctx, target); err != nil {
			return o.state, err
		}
	} else {
		log.Info().Str("op", "installer/orchestrator").Str("target", target).Msg("Executable present, skipping download")
	}

	if err := o.launch(ctx, target); err != nil {
		return o.state, err
	}
	return o.state, nil
}

func (o *Orchestrator) install(ctx context.Context, target string) error {
	if err := o.advance(StateDownloading); err != nil {
		return o.fail(err)
	}
	data, err := downloader.Download(ctx, o.deps.Remote, o.downloadOptions(), o.deps.Renderer)
	if err != nil {
		o.advance(StateDownloadFailed)
		return o.fail(fmt.Errorf("download failed: %w", err))
	}
	if err := o.advance(StateAssembled); err != nil {
		return o.fail(err)
	}

	staging := target + utils.StagingSuffix
	if err := o.fs.WriteFile(staging, data, 0o755); err != nil {
		o.fs.Remove(staging)
		return o.fail(&UnexpectedError{Op: "writing staged executable", Err: err})
	}
	if err := o.replace(staging, target); err != nil {
		return o.fail(err)
	}
	if err := o.advance(StateInstalled); err != nil {
		return o.fail(err)
	}
	log.Info().Str("op", "installer/orchestrator").Str("target", target).Int("bytes", len(data)).Msg("Executable installed")
	return nil
}

// replace moves the staged executable over target. A target that cannot be
// replaced leaves the installed executable as it was and the staging file
// removed.
func (o *Orchestrator) replace(staging, target string) error {
	if o.renameOverwrites {
		if err := o.fs.Rename(staging, target); err != nil {
			o.discardStaging(staging)
			o.advance(StateReplaceBlocked)
			return fmt.Errorf("%w: %w", ErrTargetLocked, err)
		}
		return nil
	}
	if err := o.fs.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		o.discardStaging(staging)
		o.advance(StateReplaceBlocked)
		return fmt.Errorf("%w: %w", ErrTargetLocked, err)
	}
	if err := o.fs.Rename(staging, target); err != nil {
		// target is already gone; keep the only copy of the new build
		log.Warn().Str("op", "installer/orchestrator").Str("staged", staging).
			Msg("Staged executable kept after failed move, run kickstart clean to remove it")
		return &UnexpectedError{Op: "moving executable into place", Err: err}
	}
	return nil
}

func (o *Orchestrator) discardStaging(staging string) {
	if err := o.fs.Remove(staging); err != nil {
		log.Warn().Str("op", "installer/orchestrator").Err(err).Msg("Error removing staged executable")
	}
}

func (o *Orchestrator) launch(ctx context.Context, target string) error {
	p, err := o.deps.Runner.Spawn(ctx, process.Command{
		Path:        target,
		Args:        o.cfg.Launch.Args,
		Dir:         o.cfg.InstallDir,
		Elevated:    o.cfg.Launch.Elevated,
		ElevateWith: o.cfg.Launch.ElevateWith,
		Foreground:  true,
	})
	if err != nil {
		return o.fail(&UnexpectedError{Op: "launching executable", Err: err})
	}
	if err := o.advance(StateLaunched); err != nil {
		return o.fail(err)
	}
	log.Info().Str("op", "installer/orchestrator").Int("pid", p.Pid()).Msgf("Launched %s", target)
	if err := p.Wait(); err != nil {
		log.Warn().Str("op", "installer/orchestrator").Err(err).Int("exitCode", process.ExitCode(err)).Msg("Launched executable exited with error")
		return nil
	}
	log.Info().Str("op", "installer/orchestrator").Msg("Launched executable exited")
	return nil
}

// welcome greets a first-time user once; the marker directory records that
// the greeting was shown.
func (o *Orchestrator) welcome() {
	marker := o.cfg.MarkerDir
	if marker == "" {
		return
	}
	seen, err := o.exists(marker)
	if err != nil {
		log.Warn().Str("op", "installer/orchestrator").Err(err).Msg("Error checking welcome marker")
		return
	}
	if seen {
		return
	}
	if _, err := o.deps.Notifier.Notify(o.cfg.WelcomeMessage, notifyTitle, ButtonOK); err != nil {
		log.Warn().Str("op", "installer/orchestrator").Err(err).Msg("Error showing welcome message")
	}
	if err := o.fs.MkdirAll(marker, 0o755); err != nil {
		log.Warn().Str("op", "installer/orchestrator").Err(err).Msg("Error creating welcome marker")
	}
}

func (o *Orchestrator) offerExclusion(ctx context.Context) {
	excl := o.cfg.Exclusion
	if !excl.Enabled || len(excl.Command) == 0 {
		return
	}
	choice, err := o.deps.Notifier.Notify(excl.Prompt, notifyTitle, ButtonYesNo)
	if err != nil {
		log.Warn().Str("op", "installer/orchestrator").Err(err).Msg("Error asking about scanner exclusion")
		return
	}
	if choice != ChoiceYes {
		log.Debug().Str("op", "installer/orchestrator").Msg("Scanner exclusion declined")
		return
	}

	args := make([]string, 0, len(excl.Command)-1)
	for _, arg := range excl.Command[1:] {
		args = append(args, strings.ReplaceAll(arg, installDirPattern, o.cfg.InstallDir))
	}
	p, err := o.deps.Runner.Spawn(ctx, process.Command{
		Path:        excl.Command[0],
		Args:        args,
		Elevated:    true,
		ElevateWith: o.cfg.Launch.ElevateWith,
		LogOutput:   true,
	})
	if err == nil {
		err = p.Wait()
	}
	if err != nil {
		log.Warn().Str("op", "installer/orchestrator").Err(err).Msg("Scanner exclusion command failed, continuing")
		return
	}
	log.Info().Str("op", "installer/orchestrator").Msg("Scanner exclusion added")
}

func (o *Orchestrator) advance(to State) error {
	if !o.state.CanTransition(to) {
		return &UnexpectedError{Op: "changing state", Err: fmt.Errorf("invalid transition %s -> %s", o.state, to)}
	}
	log.Debug().Str("op", "installer/orchestrator").Stringer("from", o.state).Stringer("to", to).Msg("State change")
	o.state = to
	return nil
}

// fail reports err to the user and returns it unchanged.
func (o *Orchestrator) fail(err error) error {
	log.Error().Str("op", "installer/orchestrator").Stringer("state", o.state).Err(err).Msg("Run failed")
	if _, nerr := o.deps.Notifier.Notify(failureMessage(err), notifyTitle, ButtonOK); nerr != nil {
		log.Warn().Str("op", "installer/orchestrator").Err(nerr).Msg("Error showing failure notification")
	}
	return err
}

func failureMessage(err error) string {
	var unexpected *UnexpectedError
	switch {
	case errors.Is(err, ErrTargetLocked):
		return "The application could not be updated because the installed copy is in use. Close it and try again."
	case errors.Is(err, context.Canceled):
		return "Installation was cancelled."
	case errors.Is(err, downloader.ErrSessionFailed):
		return "The application could not be downloaded. Check your connection and try again."
	case errors.As(err, &unexpected):
		return fmt.Sprintf("Installation failed: %v", unexpected)
	default:
		return fmt.Sprintf("The application could not be downloaded: %v", err)
	}
}

func (o *Orchestrator) exists(path string) (bool, error) {
	_, err := o.fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (o *Orchestrator) downloadOptions() downloader.Options {
	d := o.cfg.Download
	return downloader.Options{
		ChunkSize:      d.ChunkSize,
		Concurrency:    d.Concurrency,
		MaxRetries:     d.MaxRetries,
		BackoffBase:    d.BackoffBase,
		SampleInterval: d.SampleInterval,
		MaxSize:        d.MaxSize,
	}
}
