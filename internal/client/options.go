package client

import (
	"io"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/trace"

	"arena-timer/internal/domain"
	"arena-timer/internal/infrastructure"
	"arena-timer/internal/metrics"
	"arena-timer/pkg/protocol"
)

// DefaultMaxFramesPerPoll bounds how many frames one Poll decodes
const DefaultMaxFramesPerPoll = 16

// Options configures a Client
type Options struct {
	// SocketIO enables the Engine.IO/Socket.IO envelope. A path containing
	// "/socket.io" enables it regardless.
	SocketIO bool
	// AutoReconnect retries failed or lost connections with backoff
	AutoReconnect bool
	// AppendEIOQuery adds EIOQuery to the handshake path in Socket.IO mode
	AppendEIOQuery bool
	EIOQuery       string
	// RequireConnectAck drops events that arrive before the Socket.IO connect acknowledgement
	RequireConnectAck bool

	BaseInterval time.Duration
	CapInterval  time.Duration
	PingInterval time.Duration

	ReadTimeout     time.Duration
	ResponseTimeout time.Duration
	HeaderTimeout   time.Duration
	VerifyAccept    bool
	BufferSize      int

	MaxFramesPerPoll int

	// Rand supplies masking keys and handshake nonces; crypto/rand when nil
	Rand   io.Reader
	Clock  infrastructure.Clock
	Tracer trace.Tracer
	// Metrics may be nil
	Metrics *metrics.Metrics
	Logger  logr.Logger
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		AutoReconnect:    true,
		AppendEIOQuery:   true,
		EIOQuery:         protocol.DefaultEIOQuery,
		BaseInterval:     domain.DefaultBaseInterval,
		CapInterval:      domain.DefaultCapInterval,
		PingInterval:     infrastructure.DefaultPingInterval,
		ReadTimeout:      infrastructure.DefaultReadTimeout,
		ResponseTimeout:  infrastructure.DefaultResponseTimeout,
		HeaderTimeout:    infrastructure.DefaultHeaderTimeout,
		BufferSize:       domain.DefaultReceiveBufferSize,
		MaxFramesPerPoll: DefaultMaxFramesPerPoll,
	}
}
