package downloader

import "fmt"

// PlanChunks splits [0, totalSize-1] into ceil(totalSize/chunkSize) ordered,
// contiguous chunks. The last chunk may be shorter than chunkSize.
func PlanChunks(totalSize, chunkSize int64) ([]Chunk, error) {
	if totalSize < 0 {
		return nil, fmt.Errorf("invalid total size %d", totalSize)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("invalid chunk size %d", chunkSize)
	}
	count := (totalSize + chunkSize - 1) / chunkSize
	chunks := make([]Chunk, 0, count)
	for i := int64(0); i < count; i++ {
		start := i * chunkSize
		end := min(start+chunkSize, totalSize) - 1
		chunks = append(chunks, Chunk{
			Index: int(i),
			Start: start,
			End:   end,
		})
	}
	return chunks, nil
}
