package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"arena-timer/internal/domain"
)

// Config configures the engine collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "arena_timer").
	Namespace string

	// Subsystem is the metrics subsystem (default: "websocket").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the engine collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "arena_timer",
		Subsystem: "websocket",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the collectors of one WebSocket client engine. All methods
// are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	framesReceived    *prometheus.CounterVec
	framesSent        *prometheus.CounterVec
	bytesSent         prometheus.Counter
	messagesDelivered *prometheus.CounterVec
	truncatedPayloads prometheus.Counter
	connectAttempts   *prometheus.CounterVec
	handshakeFailures prometheus.Counter
	protocolErrors    *prometheus.CounterVec
	disconnects       *prometheus.CounterVec
	state             prometheus.Gauge
}

// New registers the engine collectors.
//
// Metrics collected:
//   - arena_timer_websocket_frames_received_total: frames decoded, by opcode
//   - arena_timer_websocket_frames_sent_total: frames written, by opcode
//   - arena_timer_websocket_bytes_sent_total: wire bytes written
//   - arena_timer_websocket_messages_delivered_total: payloads handed to the sink, by type
//   - arena_timer_websocket_truncated_payloads_total: payloads cut to the receive buffer
//   - arena_timer_websocket_connect_attempts_total: attempts, by kind (user, retry)
//   - arena_timer_websocket_handshake_failures_total: upgrade exchanges that failed
//   - arena_timer_websocket_protocol_errors_total: malformed frames, by kind (dropped, desync)
//   - arena_timer_websocket_disconnects_total: connection losses, by reason
//   - arena_timer_websocket_state: current connection state
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, labels)
	}
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		})
	}

	return &Metrics{
		framesReceived:    counterVec("frames_received_total", "Frames decoded from the server", "opcode"),
		framesSent:        counterVec("frames_sent_total", "Frames written to the server", "opcode"),
		bytesSent:         counter("bytes_sent_total", "Wire bytes written to the server"),
		messagesDelivered: counterVec("messages_delivered_total", "Application payloads delivered to the sink", "type"),
		truncatedPayloads: counter("truncated_payloads_total", "Payloads truncated to the receive buffer capacity"),
		connectAttempts:   counterVec("connect_attempts_total", "Connection attempts", "kind"),
		handshakeFailures: counter("handshake_failures_total", "Failed HTTP upgrade exchanges"),
		protocolErrors:    counterVec("protocol_errors_total", "Malformed frames", "kind"),
		disconnects:       counterVec("disconnects_total", "Connection losses", "reason"),
		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "state",
			Help:        "Connection state (0 disconnected, 1 connecting, 2 connected, 3 closing)",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// FrameReceived counts one decoded frame
func (m *Metrics) FrameReceived(op domain.Opcode) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(op.String()).Inc()
}

// FrameSent counts one written frame of n wire bytes
func (m *Metrics) FrameSent(op domain.Opcode, n int) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(op.String()).Inc()
	m.bytesSent.Add(float64(n))
}

// MessageDelivered counts one payload handed to the sink
func (m *Metrics) MessageDelivered(msg *domain.Message) {
	if m == nil {
		return
	}
	m.messagesDelivered.WithLabelValues(msg.Type.String()).Inc()
	if msg.Truncated {
		m.truncatedPayloads.Inc()
	}
}

// ConnectAttempt counts an attempt; retry distinguishes backoff retries from user connects
func (m *Metrics) ConnectAttempt(retry bool) {
	if m == nil {
		return
	}
	kind := "user"
	if retry {
		kind = "retry"
	}
	m.connectAttempts.WithLabelValues(kind).Inc()
}

// HandshakeFailed counts a failed upgrade exchange
func (m *Metrics) HandshakeFailed() {
	if m == nil {
		return
	}
	m.handshakeFailures.Inc()
}

// ProtocolError counts a malformed frame
func (m *Metrics) ProtocolError(desync bool) {
	if m == nil {
		return
	}
	kind := "dropped"
	if desync {
		kind = "desync"
	}
	m.protocolErrors.WithLabelValues(kind).Inc()
}

// Disconnected counts a connection loss
func (m *Metrics) Disconnected(reason string) {
	if m == nil {
		return
	}
	m.disconnects.WithLabelValues(reason).Inc()
}

// SetState publishes the connection state
func (m *Metrics) SetState(state domain.ConnectionState) {
	if m == nil {
		return
	}
	m.state.Set(float64(state))
}
