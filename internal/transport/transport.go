// Package transport provides the byte-stream port the websocket client runs on.
package transport

// Port is a bidirectional byte stream to one server. Available and ReadByte
// never block; a caller that needs more bytes polls Available until its own
// deadline passes.
type Port interface {
	// Open connects to host:port
	Open(host string, port uint16) error
	// IsOpen reports whether the stream is usable
	IsOpen() bool
	// Available returns how many bytes can be read without blocking
	Available() int
	// ReadByte returns the next byte, or an error if none is available
	ReadByte() (byte, error)
	// Write sends all of p
	Write(p []byte) (int, error)
	// Close tears the stream down; closing a closed port is a no-op
	Close() error
}

// Factory creates a fresh, unopened Port for each connection attempt so no
// buffered bytes survive a reconnect.
type Factory func() Port
