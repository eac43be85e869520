package downloader

import "fmt"

// Assembler owns the preallocated result buffer. Each chunk has exclusive
// write ownership of buf[Start:End+1]; chunks never overlap, so concurrent
// writes need no locking as long as the plan is correct.
type Assembler struct {
	buf []byte
}

func NewAssembler(totalSize int64) *Assembler {
	return &Assembler{buf: make([]byte, totalSize)}
}

func (a *Assembler) Write(c Chunk, payload []byte) error {
	if int64(len(payload)) != c.Len() {
		return fmt.Errorf("chunk %d: payload is %d bytes, want %d", c.Index, len(payload), c.Len())
	}
	if c.Start < 0 || c.End >= int64(len(a.buf)) {
		return fmt.Errorf("chunk %d: range [%d,%d] outside buffer of %d bytes", c.Index, c.Start, c.End, len(a.buf))
	}
	copy(a.buf[c.Start:c.End+1], payload)
	return nil
}

func (a *Assembler) Bytes() []byte {
	return a.buf
}
