package downloader

import "fmt"

type ChunkStatus int

const (
	ChunkPending ChunkStatus = iota
	ChunkInFlight
	ChunkSucceeded
	ChunkFailed
)

func (s ChunkStatus) String() string {
	switch s {
	case ChunkPending:
		return "pending"
	case ChunkInFlight:
		return "in-flight"
	case ChunkSucceeded:
		return "succeeded"
	case ChunkFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Chunk is an inclusive byte range [Start, End] of the artifact.
type Chunk struct {
	Index   int
	Start   int64
	End     int64
	Status  ChunkStatus
	Retries int
}

func (c Chunk) Len() int64 {
	return c.End - c.Start + 1
}

func (c Chunk) Terminal() bool {
	return c.Status == ChunkSucceeded || c.Status == ChunkFailed
}
