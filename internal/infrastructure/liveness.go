package infrastructure

import "time"

// DefaultPingInterval is the cadence of client pings in plain websocket mode
const DefaultPingInterval = 30 * time.Second

// LivenessAction tells the caller what a Tick requires
type LivenessAction int

const (
	// LivenessIdle requires nothing
	LivenessIdle LivenessAction = iota
	// LivenessSendPing asks the caller to write a Ping frame
	LivenessSendPing
	// LivenessTimeout declares the connection dead
	LivenessTimeout
)

func (a LivenessAction) String() string {
	switch a {
	case LivenessSendPing:
		return "send-ping"
	case LivenessTimeout:
		return "timeout"
	default:
		return "idle"
	}
}

// LivenessMonitor decides when to ping and when a connection is dead.
//
// In websocket mode it pings every interval and times out when a pong has
// not arrived one interval after the ping. In Socket.IO mode it never pings;
// the server owns the keepalive cadence, and the monitor only watches that
// server pings keep arriving within the window the Engine.IO open packet
// announced.
type LivenessMonitor struct {
	interval time.Duration
	socketIO bool

	lastPing time.Time
	awaiting bool

	heartbeat      time.Duration
	lastServerPing time.Time
}

// NewLivenessMonitor creates a monitor with the given ping interval
func NewLivenessMonitor(interval time.Duration) *LivenessMonitor {
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	return &LivenessMonitor{interval: interval}
}

// Start arms the monitor for a freshly opened connection
func (m *LivenessMonitor) Start(now time.Time, socketIO bool) {
	m.socketIO = socketIO
	m.lastPing = now
	m.awaiting = false
	m.heartbeat = 0
	m.lastServerPing = now
}

// Tick is called once per poll while connected
func (m *LivenessMonitor) Tick(now time.Time) LivenessAction {
	if m.socketIO {
		if m.heartbeat > 0 && now.Sub(m.lastServerPing) > m.heartbeat {
			return LivenessTimeout
		}
		return LivenessIdle
	}

	if now.Sub(m.lastPing) < m.interval {
		return LivenessIdle
	}
	if m.awaiting {
		return LivenessTimeout
	}
	m.lastPing = now
	m.awaiting = true
	return LivenessSendPing
}

// PongReceived clears the awaiting flag
func (m *LivenessMonitor) PongReceived() {
	m.awaiting = false
}

// Awaiting reports whether a ping is outstanding
func (m *LivenessMonitor) Awaiting() bool {
	return m.awaiting
}

// SetHeartbeat sets the server silence window in Socket.IO mode; zero disables it
func (m *LivenessMonitor) SetHeartbeat(window time.Duration, now time.Time) {
	m.heartbeat = window
	m.lastServerPing = now
}

// ServerPing records an Engine.IO ping from the server
func (m *LivenessMonitor) ServerPing(now time.Time) {
	m.lastServerPing = now
}
