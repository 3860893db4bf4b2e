package pcm

// Chunker accumulates encoded PCM and emits chunks of exactly Size samples.
// It is not safe for concurrent use.
type Chunker struct {
	size    int
	pending []byte
}

// NewChunker returns a Chunker emitting chunks of size samples.
func NewChunker(size int) *Chunker {
	if size <= 0 {
		panic("pcm: chunk size must be positive")
	}
	return &Chunker{size: size}
}

// Size returns the chunk size in samples.
func (c *Chunker) Size() int {
	return c.size
}

// Push appends data and returns every complete chunk now available.
// Returned slices are not retained by the Chunker.
func (c *Chunker) Push(data []byte) [][]byte {
	c.pending = append(c.pending, data...)
	n := c.size * 2
	var out [][]byte
	for len(c.pending) >= n {
		chunk := make([]byte, n)
		copy(chunk, c.pending[:n])
		out = append(out, chunk)
		c.pending = c.pending[n:]
	}
	if len(c.pending) == 0 {
		c.pending = nil
	}
	return out
}

// Pending returns the number of buffered bytes not yet emitted.
func (c *Chunker) Pending() int {
	return len(c.pending)
}

// Reset drops any buffered partial chunk.
func (c *Chunker) Reset() {
	c.pending = nil
}
