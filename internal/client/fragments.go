package client

import "arena-timer/internal/domain"

// assembler joins a fragmented Text or Binary message. The joined payload is
// bounded by the receive buffer capacity; the excess is dropped and the
// message is marked truncated.
type assembler struct {
	opcode    domain.Opcode
	started   bool
	truncated bool
	buf       *domain.ReceiveBuffer
}

func newAssembler(capacity int) *assembler {
	return &assembler{buf: domain.NewReceiveBuffer(capacity)}
}

func (a *assembler) active() bool {
	return a.started
}

// start begins a message with its first, non-final frame
func (a *assembler) start(frame *domain.Frame) {
	a.reset()
	a.opcode = frame.Opcode
	a.started = true
	a.append(frame)
}

func (a *assembler) append(frame *domain.Frame) {
	for _, b := range frame.Payload {
		_ = a.buf.WriteByte(b)
	}
	if frame.Truncated() || a.buf.Discarded() > 0 {
		a.truncated = true
	}
}

// finish returns the assembled message and clears the assembler. The payload
// is a copy.
func (a *assembler) finish() (domain.Opcode, []byte, bool) {
	op, payload, truncated := a.opcode, a.buf.Clone(), a.truncated
	a.reset()
	return op, payload, truncated
}

func (a *assembler) reset() {
	a.buf.Reset()
	a.opcode = 0
	a.started = false
	a.truncated = false
}
