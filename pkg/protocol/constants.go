package protocol

// WebSocket protocol constants as defined in RFC 6455

const (
	// WebSocketGUID is the magic string used in handshake accept key calculation
	WebSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

	// WebSocket version
	WebSocketVersion = "13"

	// Header names
	HeaderHost                = "Host"
	HeaderUpgrade             = "Upgrade"
	HeaderConnection          = "Connection"
	HeaderSecWebSocketKey     = "Sec-WebSocket-Key"
	HeaderSecWebSocketAccept  = "Sec-WebSocket-Accept"
	HeaderSecWebSocketVersion = "Sec-WebSocket-Version"

	// Header values
	HeaderValueWebSocket = "websocket"
	HeaderValueUpgrade   = "Upgrade"

	// StatusSwitchingProtocols is the only handshake status code a client accepts
	StatusSwitchingProtocols = "101"

	// KeyNonceSize is the number of random bytes behind Sec-WebSocket-Key
	KeyNonceSize = 16

	// Close status codes
	StatusNormalClosure    = 1000
	StatusGoingAway        = 1001
	StatusProtocolError    = 1002
	StatusNoStatusReceived = 1005
	StatusMessageTooBig    = 1009

	// Frame header bits
	FinBit      = 0x80
	MaskBit     = 0x80
	RSVBits     = 0x70
	OpcodeBits  = 0x0F
	LengthBits  = 0x7F
	MaskKeySize = 4

	// Frame size limits
	MaxControlFramePayloadSize = 125
	MaxFrameHeaderSize         = 14

	// MaxEncodablePayload is the largest payload the encoder writes. The
	// 64-bit length form always carries a zero high word.
	MaxEncodablePayload = 1<<32 - 1

	// Payload length indicators
	PayloadLen16Bit = 126
	PayloadLen64Bit = 127

	// Max16BitPayload is the largest length carried by the 16-bit form
	Max16BitPayload = 65535
)
