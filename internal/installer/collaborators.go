package installer

import (
	"context"
	"os"

	"github.com/tanq16/kickstart/internal/process"
)

type ButtonStyle int

const (
	ButtonOK ButtonStyle = iota
	ButtonYesNo
)

type Choice int

const (
	ChoiceOK Choice = iota
	ChoiceYes
	ChoiceNo
)

func (c Choice) String() string {
	switch c {
	case ChoiceOK:
		return "ok"
	case ChoiceYes:
		return "yes"
	case ChoiceNo:
		return "no"
	default:
		return "unknown"
	}
}

// Notifier shows a blocking message to the user.
type Notifier interface {
	Notify(message, title string, style ButtonStyle) (Choice, error)
}

type ProcessRunner interface {
	Spawn(ctx context.Context, cmd process.Command) (process.Process, error)
}

type fileSystem interface {
	MkdirAll(path string, perm os.FileMode) error
	Stat(name string) (os.FileInfo, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	Remove(name string) error
	Rename(oldpath, newpath string) error
}

type osFS struct{}

func (osFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (osFS) Stat(name string) (os.FileInfo, error)        { return os.Stat(name) }
func (osFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}
func (osFS) Remove(name string) error             { return os.Remove(name) }
func (osFS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }
