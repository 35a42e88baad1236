package domain

// DefaultReceiveBufferSize is the receive buffer capacity in bytes
const DefaultReceiveBufferSize = 512

// ReceiveBuffer accumulates one decoded payload at a time. Its capacity is
// fixed at construction; bytes written past it are counted but dropped.
type ReceiveBuffer struct {
	buf       []byte
	n         int
	discarded uint64
}

// NewReceiveBuffer allocates a buffer holding at most capacity bytes
func NewReceiveBuffer(capacity int) *ReceiveBuffer {
	if capacity <= 0 {
		capacity = DefaultReceiveBufferSize
	}
	return &ReceiveBuffer{buf: make([]byte, capacity)}
}

// Cap returns the fixed capacity
func (b *ReceiveBuffer) Cap() int {
	return len(b.buf)
}

// Len returns the number of stored bytes
func (b *ReceiveBuffer) Len() int {
	return b.n
}

// Discarded returns how many bytes were dropped since the last Reset
func (b *ReceiveBuffer) Discarded() uint64 {
	return b.discarded
}

// WriteByte stores c, or counts it as discarded when the buffer is full.
// It never fails.
func (b *ReceiveBuffer) WriteByte(c byte) error {
	if b.n < len(b.buf) {
		b.buf[b.n] = c
		b.n++
		return nil
	}
	b.discarded++
	return nil
}

// Bytes returns the stored bytes. The slice is reused by the next Reset.
func (b *ReceiveBuffer) Bytes() []byte {
	return b.buf[:b.n]
}

// Clone returns a copy of the stored bytes
func (b *ReceiveBuffer) Clone() []byte {
	out := make([]byte, b.n)
	copy(out, b.buf[:b.n])
	return out
}

// Reset empties the buffer
func (b *ReceiveBuffer) Reset() {
	b.n = 0
	b.discarded = 0
}
