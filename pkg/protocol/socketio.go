package protocol

// Engine.IO packet types, sent as the first ASCII character of a text frame.
const (
	EngineOpen    byte = '0'
	EngineClose   byte = '1'
	EnginePing    byte = '2'
	EnginePong    byte = '3'
	EngineMessage byte = '4'
	EngineUpgrade byte = '5'
	EngineNoop    byte = '6'
)

// Socket.IO packet types, carried as the character after an Engine.IO message.
const (
	SocketConnect      byte = '0'
	SocketDisconnect   byte = '1'
	SocketEvent        byte = '2'
	SocketAck          byte = '3'
	SocketConnectError byte = '4'
)

const (
	// PacketSocketConnect asks the server to join the default namespace
	PacketSocketConnect = "40"

	// PacketEnginePong answers an Engine.IO ping
	PacketEnginePong = "3"

	// PacketEventPrefix prefixes an outgoing Socket.IO event
	PacketEventPrefix = "42"

	// DefaultEIOQuery selects Engine.IO v4 over a direct websocket transport
	DefaultEIOQuery = "EIO=4&transport=websocket"
)
