package reactor

// Buffer is a fixed-capacity byte region with a write cursor, the target of
// the partial reads and writes performed by [Reactor.Read] and
// [Reactor.Write]. It is owned by the caller and borrowed by the adapter for
// the duration of one call.
type Buffer struct {
	b []byte
	w int
}

// NewBuffer creates an empty Buffer with the given capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{b: make([]byte, capacity)}
}

// BufferFrom creates a Buffer backed by p with the write cursor at len(p),
// i.e. a fully-populated buffer ready to be written out. The Buffer takes
// ownership of p.
func BufferFrom(p []byte) *Buffer {
	return &Buffer{b: p, w: len(p)}
}

// Bytes returns the populated portion of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.b[:b.w]
}

// Len returns the number of populated bytes.
func (b *Buffer) Len() int {
	return b.w
}

// Cap returns the buffer's fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.b)
}

// Remaining returns the unpopulated capacity.
func (b *Buffer) Remaining() int {
	return len(b.b) - b.w
}

// Reset moves the write cursor back to the start.
func (b *Buffer) Reset() {
	b.w = 0
}

// free returns the unpopulated region, for one non-blocking read attempt.
func (b *Buffer) free() []byte {
	return b.b[b.w:]
}

// advance moves the write cursor forward after a successful read.
func (b *Buffer) advance(n int) {
	b.w += n
}
