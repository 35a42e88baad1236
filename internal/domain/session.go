package domain

import "time"

// Session tracks the two-layer Socket.IO handshake: the Engine.IO open
// packet, then the Socket.IO connect acknowledgement.
type Session struct {
	EngineIOOpen      bool
	SocketIOConnected bool

	// Values from the Engine.IO open packet, zero until it arrives
	SID          string
	PingInterval time.Duration
	PingTimeout  time.Duration
}

// Open records the Engine.IO open packet
func (s *Session) Open(sid string, pingInterval, pingTimeout time.Duration) {
	s.EngineIOOpen = true
	s.SID = sid
	s.PingInterval = pingInterval
	s.PingTimeout = pingTimeout
}

// Connected records the Socket.IO connect acknowledgement
func (s *Session) Connected() {
	s.SocketIOConnected = true
}

// Established reports whether both layers completed their handshake
func (s Session) Established() bool {
	return s.EngineIOOpen && s.SocketIOConnected
}

// Reset returns the session to its pre-handshake state
func (s *Session) Reset() {
	*s = Session{}
}

// HeartbeatWindow is how long the server may stay silent before the session is
// considered dead, or zero when the open packet did not announce it.
func (s Session) HeartbeatWindow() time.Duration {
	if s.PingInterval <= 0 {
		return 0
	}
	return s.PingInterval + s.PingTimeout
}
