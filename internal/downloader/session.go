package downloader

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is one download invocation: the chunk plan, the result buffer and
// the shared failure counter. It must not be reused.
type Session struct {
	ID        uuid.UUID
	TotalSize int64
	Chunks    []Chunk
	StartTime time.Time

	assembler *Assembler
	failed    atomic.Int32
}

func NewSession(totalSize, chunkSize int64) (*Session, error) {
	chunks, err := PlanChunks(totalSize, chunkSize)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        uuid.New(),
		TotalSize: totalSize,
		Chunks:    chunks,
		StartTime: time.Now(),
		assembler: NewAssembler(totalSize),
	}, nil
}

func (s *Session) FailedChunks() int {
	return int(s.failed.Load())
}

func (s *Session) markFailed() {
	s.failed.Add(1)
}

// Result hands out the assembled buffer only when every chunk succeeded.
func (s *Session) Result() ([]byte, error) {
	if n := s.FailedChunks(); n > 0 {
		return nil, fmt.Errorf("%w: %d chunks failed", ErrSessionFailed, n)
	}
	for _, c := range s.Chunks {
		if c.Status != ChunkSucceeded {
			return nil, fmt.Errorf("%w: chunk %d is %s", ErrSessionFailed, c.Index, c.Status)
		}
	}
	return s.assembler.Bytes(), nil
}
