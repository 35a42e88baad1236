package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// Frame errors
	ErrInvalidFrameStructure = errors.New("invalid frame structure")
	ErrInvalidOpcode         = errors.New("invalid opcode")
	ErrReservedBitsSet       = errors.New("reserved bits incorrectly set")
	ErrPayloadTooLarge       = errors.New("payload exceeds maximum size")
	ErrUnexpectedContinue    = errors.New("continuation frame without a started message")
	ErrWouldBlock            = errors.New("no complete frame header available")

	// Connection errors
	ErrTransport          = errors.New("transport failure")
	ErrNotConnected       = errors.New("not connected")
	ErrConnectionLost     = errors.New("connection lost")
	ErrServerClosed       = errors.New("server closed the connection")
	ErrLivenessTimeout    = fmt.Errorf("%w: no pong before deadline", ErrTransport)
	ErrInvalidState       = errors.New("invalid connection state")
	ErrHandshakeRejected  = errors.New("handshake rejected")
	ErrHandshakeTimeout   = errors.New("handshake timed out")
	ErrEmptyHost          = errors.New("empty host")
	ErrPortNotOpen        = errors.New("transport port is not open")
	ErrEngineClosed       = errors.New("engine.io session closed by server")
	ErrMissingEventName   = errors.New("missing event name")
	ErrInvalidMessageType = errors.New("invalid message type")
)

// TransportError is a connect, read or write failure on the Transport Port.
// It is recoverable and feeds backoff.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// HandshakeError reports a failed HTTP upgrade exchange.
type HandshakeError struct {
	StatusLine string
	Err        error
}

func (e *HandshakeError) Error() string {
	if e.StatusLine == "" {
		return fmt.Sprintf("handshake: %v", e.Err)
	}
	return fmt.Sprintf("handshake: %v: %q", e.Err, e.StatusLine)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// ProtocolError is a malformed frame. Only a Desync error, one that left the
// byte stream misaligned, forces a teardown; otherwise the frame is dropped.
type ProtocolError struct {
	Reason string
	Desync bool
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Desync {
		return fmt.Sprintf("protocol error (stream desynchronized): %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError returns a ProtocolError that keeps the stream aligned
func NewProtocolError(reason string, err error) *ProtocolError {
	return &ProtocolError{Reason: reason, Err: err}
}

// NewDesyncError returns a ProtocolError that broke stream alignment
func NewDesyncError(reason string, err error) *ProtocolError {
	return &ProtocolError{Reason: reason, Desync: true, Err: err}
}

// IsDesync reports whether err requires tearing the connection down
func IsDesync(err error) bool {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		return perr.Desync
	}
	return false
}

// IsRecoverable reports whether err leaves the connection usable: a ProtocolError
// that kept the stream aligned. Everything else ends the connection.
func IsRecoverable(err error) bool {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		return !perr.Desync
	}
	return false
}
