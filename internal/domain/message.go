package domain

import "fmt"

// MessageType represents the type of an application message
type MessageType int

const (
	// MessageTypeText represents a text message
	MessageTypeText MessageType = iota
	// MessageTypeBinary represents a binary message
	MessageTypeBinary
	// MessageTypeEvent represents a Socket.IO event array, still JSON encoded
	MessageTypeEvent
)

// String returns the string representation of the message type
func (m MessageType) String() string {
	switch m {
	case MessageTypeText:
		return "Text"
	case MessageTypeBinary:
		return "Binary"
	case MessageTypeEvent:
		return "Event"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// Message is one decoded application payload
type Message struct {
	Type      MessageType
	Payload   []byte
	Truncated bool // Part of the payload exceeded the receive buffer and was dropped
}

// NewTextMessage creates a new text message
func NewTextMessage(payload []byte) *Message {
	return &Message{Type: MessageTypeText, Payload: payload}
}

// NewBinaryMessage creates a new binary message
func NewBinaryMessage(payload []byte) *Message {
	return &Message{Type: MessageTypeBinary, Payload: payload}
}

// NewEventMessage creates a message carrying a Socket.IO event array
func NewEventMessage(payload []byte) *Message {
	return &Message{Type: MessageTypeEvent, Payload: payload}
}

// MessageTypeForOpcode maps a data frame opcode to its message type
func MessageTypeForOpcode(op Opcode) (MessageType, error) {
	switch op {
	case OpcodeText:
		return MessageTypeText, nil
	case OpcodeBinary:
		return MessageTypeBinary, nil
	default:
		return 0, fmt.Errorf("%w: opcode %s", ErrInvalidMessageType, op)
	}
}

// IsText returns true if this is a text message
func (m *Message) IsText() bool {
	return m.Type == MessageTypeText
}

// IsBinary returns true if this is a binary message
func (m *Message) IsBinary() bool {
	return m.Type == MessageTypeBinary
}

// ToOpcode converts the message type to the frame opcode used to send it
func (m *Message) ToOpcode() Opcode {
	if m.Type == MessageTypeBinary {
		return OpcodeBinary
	}
	return OpcodeText
}

// MessageSink receives decoded application payloads. The consumer owns
// interpretation and side effects; msg is only valid during the call.
type MessageSink interface {
	OnMessage(msg *Message)
}

// MessageSinkFunc adapts a function to MessageSink
type MessageSinkFunc func(msg *Message)

// OnMessage calls f(msg)
func (f MessageSinkFunc) OnMessage(msg *Message) {
	f(msg)
}
