package installer

import (
	"errors"
	"fmt"
)

// ErrTargetLocked means the existing executable could not be removed. The old
// file is left untouched.
var ErrTargetLocked = errors.New("installer: target executable is locked")

// UnexpectedError wraps any other failure during install or launch.
type UnexpectedError struct {
	Op  string
	Err error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error during %s: %v", e.Op, e.Err)
}

func (e *UnexpectedError) Unwrap() error {
	return e.Err
}
