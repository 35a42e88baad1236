package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ConnectionState represents the state of the client connection
type ConnectionState int

const (
	// StateDisconnected is the initial state, and the terminal one after a manual stop
	StateDisconnected ConnectionState = iota
	// StateConnecting indicates the TCP connect and handshake are in flight
	StateConnecting
	// StateConnected indicates the handshake succeeded
	StateConnected
	// StateClosing is transient and always resolves to StateDisconnected
	StateClosing
)

// String returns the string representation of the connection state
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateClosing:
		return "Closing"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Status is the user-facing summary of the connection
type Status int

const (
	StatusNotConnected Status = iota
	StatusConnected
	StatusReconnecting
	StatusDisconnected
)

// String returns the display text for the status
func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "Connected"
	case StatusReconnecting:
		return "Reconnecting..."
	case StatusDisconnected:
		return "Disconnected"
	case StatusNotConnected:
		return "Not connected"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Connection represents the single outbound connection target and its state
type Connection struct {
	State    ConnectionState
	Host     string
	Port     uint16
	Path     string
	SocketIO bool
}

// NewConnection creates a disconnected connection with no target
func NewConnection() *Connection {
	return &Connection{State: StateDisconnected, Path: "/"}
}

// SetTarget records the server to connect to. An empty path becomes "/".
func (c *Connection) SetTarget(host string, port uint16, path string) {
	if path == "" {
		path = "/"
	} else if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	c.Host = host
	c.Port = port
	c.Path = path
}

// HasTarget reports whether a host has been configured
func (c *Connection) HasTarget() bool {
	return c.Host != ""
}

// URL returns ws://host:port/path
func (c *Connection) URL() string {
	if c.Host == "" {
		return ""
	}
	return "ws://" + c.Host + ":" + strconv.Itoa(int(c.Port)) + c.Path
}

// CanTransitionTo checks if the connection can transition to the given state
func (c *Connection) CanTransitionTo(newState ConnectionState) bool {
	switch c.State {
	case StateDisconnected:
		return newState == StateConnecting
	case StateConnecting:
		return newState == StateConnected || newState == StateDisconnected
	case StateConnected:
		return newState == StateClosing || newState == StateDisconnected
	case StateClosing:
		return newState == StateDisconnected
	default:
		return false
	}
}

// TransitionTo transitions the connection to the given state
func (c *Connection) TransitionTo(newState ConnectionState) error {
	if !c.CanTransitionTo(newState) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidState, c.State, newState)
	}
	c.State = newState
	return nil
}

// IsConnected returns true if the handshake has completed
func (c *Connection) IsConnected() bool {
	return c.State == StateConnected
}

// IsDisconnected returns true if the connection is idle
func (c *Connection) IsDisconnected() bool {
	return c.State == StateDisconnected
}
