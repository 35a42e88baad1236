package infrastructure

import (
	"time"

	"arena-timer/internal/transport"
)

// waitStep is the sleep between availability probes while waiting on a deadline
const waitStep = 2 * time.Millisecond

// portReader turns the non-blocking Port primitives into deadline-bounded
// reads. It caches the last Available count so a fully buffered frame costs
// one probe rather than one per byte.
type portReader struct {
	port  transport.Port
	clock Clock
	ready int
}

func (r *portReader) reset(port transport.Port) {
	r.port = port
	r.ready = 0
}

// buffered reports whether n bytes can be read without waiting
func (r *portReader) buffered(n int) bool {
	if r.ready >= n {
		return true
	}
	r.ready = r.port.Available()
	return r.ready >= n
}

// await waits until n bytes are readable or deadline passes
func (r *portReader) await(n int, deadline time.Time) bool {
	for !r.buffered(n) {
		if !r.port.IsOpen() {
			return false
		}
		if !r.clock.Now().Before(deadline) {
			return false
		}
		r.clock.Sleep(waitStep)
	}
	return true
}

func (r *portReader) next() (byte, error) {
	c, err := r.port.ReadByte()
	if err != nil {
		r.ready = 0
		return 0, err
	}
	if r.ready > 0 {
		r.ready--
	}
	return c, nil
}

// readBefore waits for one byte, reading it if it arrives before deadline
func (r *portReader) readBefore(deadline time.Time) (byte, bool) {
	if !r.await(1, deadline) {
		return 0, false
	}
	c, err := r.next()
	return c, err == nil
}
