package transport

import (
	"bytes"
	"sync"

	"arena-timer/internal/domain"
)

// Memory is an in-process Port. Bytes queued with Feed become readable;
// everything written is recorded for inspection. It is safe for use from a
// test goroutine playing the server while the client polls.
type Memory struct {
	mu       sync.Mutex
	inbound  bytes.Buffer
	outbound bytes.Buffer
	open     bool
	consumed int

	// OpenErr, when set, is returned by Open
	OpenErr error
	// OnWrite, when set, is called with each written chunk after it is recorded
	OnWrite func(m *Memory, p []byte)

	opens  int
	closes int
	host   string
	port   uint16
}

// NewMemory returns an unopened in-memory port
func NewMemory() *Memory {
	return &Memory{}
}

// MemoryFactory returns a Factory that hands out ports in order, reusing the
// last one once the list is exhausted.
func MemoryFactory(ports ...*Memory) Factory {
	var mu sync.Mutex
	next := 0
	return func() Port {
		mu.Lock()
		defer mu.Unlock()
		p := ports[next]
		if next < len(ports)-1 {
			next++
		}
		return p
	}
}

// Open marks the port open unless OpenErr is set
func (m *Memory) Open(host string, port uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	m.host, m.port = host, port
	if m.OpenErr != nil {
		return &domain.TransportError{Op: "connect", Err: m.OpenErr}
	}
	m.open = true
	return nil
}

// IsOpen reports whether Open succeeded and Close has not been called
func (m *Memory) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Available returns the number of unread inbound bytes
func (m *Memory) Available() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inbound.Len()
}

// ReadByte consumes one inbound byte
func (m *Memory) ReadByte() (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.inbound.ReadByte()
	if err != nil {
		return 0, &domain.TransportError{Op: "read", Err: err}
	}
	m.consumed++
	return c, nil
}

// Write records p
func (m *Memory) Write(p []byte) (int, error) {
	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return 0, &domain.TransportError{Op: "write", Err: domain.ErrPortNotOpen}
	}
	m.outbound.Write(p)
	hook := m.OnWrite
	m.mu.Unlock()

	if hook != nil {
		hook(m, append([]byte(nil), p...))
	}
	return len(p), nil
}

// Close marks the port closed
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		m.closes++
	}
	m.open = false
	return nil
}

// Feed queues bytes for the client to read
func (m *Memory) Feed(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound.Write(p)
}

// Hangup simulates the peer going away
func (m *Memory) Hangup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
}

// Written returns a copy of everything written so far
func (m *Memory) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.outbound.Bytes()...)
}

// TakeWritten returns everything written so far and clears the record
func (m *Memory) TakeWritten() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]byte(nil), m.outbound.Bytes()...)
	m.outbound.Reset()
	return out
}

// Consumed returns how many inbound bytes have been read
func (m *Memory) Consumed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consumed
}

// Opens returns how many times Open was called
func (m *Memory) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// Closes returns how many times an open port was closed
func (m *Memory) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// Target returns the host and port passed to the last Open
func (m *Memory) Target() (string, uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.host, m.port
}
