// Package process spawns the installed executable and helper commands.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrNoElevation = errors.New("process: no elevation command available")

type Command struct {
	Path string
	Args []string
	Dir  string
	// Elevated runs Path through ElevateWith (or the platform default).
	Elevated    bool
	ElevateWith []string
	// LogOutput sends stdout and stderr lines to the log instead of the
	// console; stdin is not attached.
	LogOutput bool
	// Foreground detaches the command from ctx: it shares the terminal and
	// handles interrupts itself instead of being killed on cancellation.
	Foreground bool
}

type Process interface {
	Pid() int
	Wait() error
}

// ExecRunner starts commands with os/exec.
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (r *ExecRunner) Spawn(ctx context.Context, c Command) (Process, error) {
	name, args, err := c.argv()
	if err != nil {
		return nil, err
	}
	var cmd *exec.Cmd
	if c.Foreground {
		cmd = exec.Command(name, args...)
	} else {
		cmd = exec.CommandContext(ctx, name, args...)
	}
	cmd.Dir = c.Dir
	log.Debug().Str("op", "process/runner").Msgf("Executing command: %s", cmd.String())

	p := &execProcess{cmd: cmd}
	if !c.LogOutput {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = r.Stdin, r.Stdout, r.Stderr
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("error starting %s: %w", name, err)
		}
		return p, nil
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting %s: %w", name, err)
	}
	base := filepath.Base(name)
	p.streams.Add(2)
	go func() {
		defer p.streams.Done()
		processStream(stdout, func(line string) {
			log.Info().Str("op", "process/runner").Str("cmd", base).Msg(line)
		})
	}()
	go func() {
		defer p.streams.Done()
		processStream(stderr, func(line string) {
			log.Warn().Str("op", "process/runner").Str("cmd", base).Msg(line)
		})
	}()
	return p, nil
}

func (c Command) argv() (string, []string, error) {
	if c.Path == "" {
		return "", nil, errors.New("process: empty command path")
	}
	if !c.Elevated {
		return c.Path, c.Args, nil
	}
	prefix := c.ElevateWith
	if len(prefix) == 0 {
		prefix = defaultElevation()
	}
	if len(prefix) == 0 {
		return "", nil, ErrNoElevation
	}
	args := make([]string, 0, len(prefix)+len(c.Args))
	args = append(args, prefix[1:]...)
	args = append(args, c.Path)
	args = append(args, c.Args...)
	return prefix[0], args, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	streams sync.WaitGroup
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

// Wait drains captured output before reaping the process.
func (p *execProcess) Wait() error {
	p.streams.Wait()
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("%s failed: %w", filepath.Base(p.cmd.Path), err)
	}
	return nil
}

// ExitCode extracts the exit status from a Wait error, or -1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func processStream(reader io.Reader, streamFunc func(string)) {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && streamFunc != nil {
			streamFunc(line)
		}
	}
}
