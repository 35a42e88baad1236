package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"arena-timer/internal/domain"
)

const (
	// DefaultDialTimeout bounds the TCP connect
	DefaultDialTimeout = 5 * time.Second

	// pollWindow is how long Available waits on the socket before reporting zero
	pollWindow = time.Millisecond

	readBufferSize = 4096
)

// TCPPort implements Port over a net.Conn. Availability is probed with a
// short read deadline so callers never block longer than pollWindow.
type TCPPort struct {
	DialTimeout time.Duration

	conn     net.Conn
	reader   *bufio.Reader
	open     bool
	peerGone bool
}

// NewTCPPort returns an unopened TCP port
func NewTCPPort(dialTimeout time.Duration) *TCPPort {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	return &TCPPort{DialTimeout: dialTimeout}
}

// TCPFactory returns a Factory producing TCP ports with the given dial timeout
func TCPFactory(dialTimeout time.Duration) Factory {
	return func() Port {
		return NewTCPPort(dialTimeout)
	}
}

// Open dials host:port
func (p *TCPPort) Open(host string, port uint16) error {
	if p.open {
		_ = p.Close()
	}
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	conn, err := net.DialTimeout("tcp", addr, p.DialTimeout)
	if err != nil {
		return &domain.TransportError{Op: "connect", Err: err}
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	p.conn = conn
	p.reader = bufio.NewReaderSize(conn, readBufferSize)
	p.open = true
	p.peerGone = false
	return nil
}

// IsOpen reports whether the connection is still usable
func (p *TCPPort) IsOpen() bool {
	return p.open && !p.peerGone
}

// Available returns the number of buffered bytes after pulling whatever the
// socket already holds, waiting at most pollWindow when it holds nothing.
func (p *TCPPort) Available() int {
	if !p.open {
		return 0
	}
	n := p.reader.Buffered()
	if n >= p.reader.Size() || p.peerGone {
		return n
	}

	_ = p.conn.SetReadDeadline(time.Now().Add(pollWindow))
	_, err := p.reader.Peek(n + 1)
	_ = p.conn.SetReadDeadline(time.Time{})
	if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
		// EOF or reset: the peer is gone
		p.markClosed()
	}
	return p.reader.Buffered()
}

// ReadByte returns the next buffered byte
func (p *TCPPort) ReadByte() (byte, error) {
	if !p.open {
		return 0, &domain.TransportError{Op: "read", Err: domain.ErrPortNotOpen}
	}
	if p.reader.Buffered() == 0 && p.Available() == 0 {
		return 0, &domain.TransportError{Op: "read", Err: io.ErrNoProgress}
	}
	return p.reader.ReadByte()
}

// Write sends p in full
func (p *TCPPort) Write(b []byte) (int, error) {
	if !p.open {
		return 0, &domain.TransportError{Op: "write", Err: domain.ErrPortNotOpen}
	}
	if p.peerGone {
		return 0, &domain.TransportError{Op: "write", Err: io.ErrClosedPipe}
	}
	n, err := p.conn.Write(b)
	if err != nil {
		p.markClosed()
		return n, &domain.TransportError{Op: "write", Err: err}
	}
	return n, nil
}

// Close closes the socket
func (p *TCPPort) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	p.reader = nil
	p.open = false
	p.peerGone = false
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return &domain.TransportError{Op: "close", Err: err}
	}
	return nil
}

// markClosed keeps already-buffered bytes readable while reporting the port closed
func (p *TCPPort) markClosed() {
	p.peerGone = true
}
