package downloader

import (
	"errors"
	"fmt"
)

var ErrSessionFailed = errors.New("download session failed")

// ChunkExhaustedError is reported when a chunk used up all of its retries.
type ChunkExhaustedError struct {
	Index    int
	Attempts int
	Err      error
}

func (e *ChunkExhaustedError) Error() string {
	return fmt.Sprintf("chunk %d failed after %d attempts: %v", e.Index, e.Attempts, e.Err)
}

func (e *ChunkExhaustedError) Unwrap() error {
	return e.Err
}

// SessionError lists the chunks that failed in a session. It matches
// ErrSessionFailed under errors.Is.
type SessionError struct {
	TotalChunks int
	Failed      []*ChunkExhaustedError
}

func (e *SessionError) Error() string {
	if len(e.Failed) == 0 {
		return ErrSessionFailed.Error()
	}
	return fmt.Sprintf("%s: %d of %d chunks failed (first: %v)", ErrSessionFailed, len(e.Failed), e.TotalChunks, e.Failed[0])
}

func (e *SessionError) Is(target error) bool {
	return target == ErrSessionFailed
}

func (e *SessionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f)
	}
	return errs
}
