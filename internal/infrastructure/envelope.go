package infrastructure

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"arena-timer/internal/domain"
	"arena-timer/pkg/protocol"
)

// EnvelopeResult is what one inbound text payload produced
type EnvelopeResult struct {
	// Handled is true when the packet was a recognized control packet
	Handled bool
	// Reply, when non-empty, must be sent back as a text frame
	Reply string
	// Payload is the application data of an event packet, or nil
	Payload []byte
	// Ping is true for an Engine.IO ping from the server
	Ping bool
	// Opened is true for the Engine.IO open packet
	Opened bool
	// Close is true when the server closed the Engine.IO session
	Close bool
}

// openPacket is the JSON body of an Engine.IO open packet
type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int64  `json:"pingInterval"`
	PingTimeout  int64  `json:"pingTimeout"`
}

// Envelope translates Engine.IO/Socket.IO packets into application payloads.
// A malformed or unknown packet is logged and dropped; it never affects the
// packets around it.
type Envelope struct {
	session           *domain.Session
	requireConnectAck bool
	log               logr.Logger
}

// NewEnvelope creates an envelope tracking session. With requireConnectAck,
// events arriving before the Socket.IO connect acknowledgement are dropped.
func NewEnvelope(session *domain.Session, requireConnectAck bool, log logr.Logger) *Envelope {
	return &Envelope{session: session, requireConnectAck: requireConnectAck, log: log}
}

// Session returns the tracked session
func (e *Envelope) Session() *domain.Session {
	return e.session
}

// EncodeConnect returns the Socket.IO connect packet
func EncodeConnect() string {
	return protocol.PacketSocketConnect
}

// EncodePong returns the Engine.IO pong packet
func EncodePong() string {
	return protocol.PacketEnginePong
}

// EncodeEvent renders 42["event",args...]
func EncodeEvent(event string, args ...any) ([]byte, error) {
	if event == "" {
		return nil, domain.ErrMissingEventName
	}
	items := make([]any, 0, len(args)+1)
	items = append(items, event)
	items = append(items, args...)
	body, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode event %q: %w", event, err)
	}
	return append([]byte(protocol.PacketEventPrefix), body...), nil
}

// Decode interprets one inbound text payload
func (e *Envelope) Decode(raw []byte) EnvelopeResult {
	if len(raw) == 0 {
		e.warn("empty packet", raw)
		return EnvelopeResult{}
	}

	switch raw[0] {
	case protocol.EngineOpen:
		e.open(raw[1:])
		return EnvelopeResult{Handled: true, Opened: true, Reply: EncodeConnect()}

	case protocol.EngineClose:
		e.log.Info("engine.io session closed by server")
		e.session.Reset()
		return EnvelopeResult{Handled: true, Close: true}

	case protocol.EnginePing:
		e.log.V(1).Info("engine.io ping, sending pong")
		return EnvelopeResult{Handled: true, Ping: true, Reply: EncodePong() + string(raw[1:])}

	case protocol.EnginePong:
		e.log.V(1).Info("engine.io pong")
		return EnvelopeResult{Handled: true}

	case protocol.EngineNoop:
		return EnvelopeResult{Handled: true}

	case protocol.EngineMessage:
		return e.message(raw)

	default:
		e.warn("unknown engine.io packet type", raw)
		return EnvelopeResult{}
	}
}

func (e *Envelope) open(body []byte) {
	var pkt openPacket
	if len(body) > 0 {
		if err := json.Unmarshal(body, &pkt); err != nil {
			e.log.V(1).Info("ignoring malformed open packet body", "error", err.Error())
			pkt = openPacket{}
		}
	}
	e.session.Open(pkt.SID,
		time.Duration(pkt.PingInterval)*time.Millisecond,
		time.Duration(pkt.PingTimeout)*time.Millisecond)
	e.log.Info("engine.io session open", "sid", pkt.SID, "pingInterval", pkt.PingInterval)
}

func (e *Envelope) message(raw []byte) EnvelopeResult {
	if len(raw) < 2 {
		e.warn("engine.io message without socket.io type", raw)
		return EnvelopeResult{}
	}

	switch raw[1] {
	case protocol.SocketConnect:
		e.session.Connected()
		e.log.Info("socket.io connected")
		return EnvelopeResult{Handled: true}

	case protocol.SocketDisconnect:
		e.session.SocketIOConnected = false
		e.log.Info("socket.io namespace disconnected by server")
		return EnvelopeResult{Handled: true}

	case protocol.SocketEvent:
		if len(raw) == 2 {
			e.warn("event packet without payload", raw)
			return EnvelopeResult{}
		}
		if e.requireConnectAck && !e.session.SocketIOConnected {
			e.warn("event before socket.io connect acknowledgement", raw)
			return EnvelopeResult{}
		}
		payload := make([]byte, len(raw)-2)
		copy(payload, raw[2:])
		return EnvelopeResult{Payload: payload}

	case protocol.SocketConnectError:
		e.warn("socket.io connect error", raw)
		return EnvelopeResult{}

	default:
		e.warn("unsupported socket.io packet type", raw)
		return EnvelopeResult{}
	}
}

// warn logs an EnvelopeDecodeWarning; these are never escalated
func (e *Envelope) warn(msg string, raw []byte) {
	preview := raw
	if len(preview) > 32 {
		preview = preview[:32]
	}
	e.log.Info("dropping packet: "+msg, "packet", string(preview))
}
