package client

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"arena-timer/internal/domain"
	"arena-timer/internal/infrastructure"
	"arena-timer/internal/metrics"
	"arena-timer/internal/transport"
	"arena-timer/pkg/protocol"
)

// failureLogInterval limits how often a failed connection is logged at V(0)
const failureLogInterval = 10 * time.Second

// Client is the reconnection controller. It owns the connection state, the
// transport port, and every protocol component, and is driven entirely by
// Connect, Disconnect and Poll from a single goroutine.
type Client struct {
	opts    Options
	factory transport.Factory
	sink    domain.MessageSink

	port       transport.Port
	codec      *infrastructure.FrameCodec
	handshaker *infrastructure.Handshaker
	liveness   *infrastructure.LivenessMonitor
	envelope   *infrastructure.Envelope
	fragments  *assembler

	conn      *domain.Connection
	backoff   *domain.Backoff
	session   domain.Session
	attempted bool

	clock          infrastructure.Clock
	tracer         trace.Tracer
	metrics        *metrics.Metrics
	log            logr.Logger
	lastFailureLog time.Time
}

// New creates a disconnected Client. factory supplies a fresh port for every
// attempt; sink receives application payloads and may be nil.
func New(factory transport.Factory, sink domain.MessageSink, opts Options) *Client {
	if opts.Clock == nil {
		opts.Clock = infrastructure.SystemClock{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("arena-timer/client")
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	if opts.MaxFramesPerPoll <= 0 {
		opts.MaxFramesPerPoll = DefaultMaxFramesPerPoll
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = domain.DefaultReceiveBufferSize
	}
	if opts.EIOQuery == "" {
		opts.EIOQuery = protocol.DefaultEIOQuery
	}
	if sink == nil {
		sink = domain.MessageSinkFunc(func(*domain.Message) {})
	}
	log := opts.Logger

	c := &Client{
		opts:    opts,
		factory: factory,
		sink:    sink,
		codec: infrastructure.NewFrameCodec(infrastructure.CodecOptions{
			ReadTimeout: opts.ReadTimeout,
			BufferSize:  opts.BufferSize,
			Rand:        opts.Rand,
			Clock:       opts.Clock,
		}, log.WithName("codec")),
		handshaker: infrastructure.NewHandshaker(infrastructure.HandshakeOptions{
			ResponseTimeout: opts.ResponseTimeout,
			HeaderTimeout:   opts.HeaderTimeout,
			VerifyAccept:    opts.VerifyAccept,
			Rand:            opts.Rand,
			Clock:           opts.Clock,
		}, log.WithName("handshake")),
		liveness:  infrastructure.NewLivenessMonitor(opts.PingInterval),
		fragments: newAssembler(opts.BufferSize),
		conn:      domain.NewConnection(),
		backoff:   domain.NewBackoff(opts.BaseInterval, opts.CapInterval),
		clock:     opts.Clock,
		tracer:    opts.Tracer,
		metrics:   opts.Metrics,
		log:       log,
	}
	c.envelope = infrastructure.NewEnvelope(&c.session, opts.RequireConnectAck, log.WithName("envelope"))
	return c
}

// Connect points the client at ws://host:port/path and attempts a connection
// immediately. An open connection is closed first. Backoff and the manual
// disconnect flag are reset, so a failed attempt is retried by Poll when
// auto-reconnect is enabled.
func (c *Client) Connect(ctx context.Context, host string, port uint16, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if host == "" {
		return domain.ErrEmptyHost
	}
	if c.conn.IsConnected() {
		c.Disconnect()
	}

	c.backoff.Reset()
	c.attempted = true
	c.conn.SetTarget(host, port, path)
	c.conn.SocketIO = c.opts.SocketIO || strings.Contains(c.conn.Path, "/socket.io")
	return c.attempt(ctx, false)
}

// Disconnect sends a Close frame if connected, closes the port, and
// suppresses auto-reconnect until the next Connect. It is idempotent.
func (c *Client) Disconnect() {
	wasConnected := c.conn.IsConnected()
	if wasConnected {
		_ = c.conn.TransitionTo(domain.StateClosing)
		c.sendClose(protocol.StatusNormalClosure)
	}
	c.teardown()
	c.backoff.ManuallyDisconnected = true

	if wasConnected {
		c.metrics.Disconnected("user")
		c.log.Info("disconnected", "url", c.conn.URL())
	}
}

// Poll runs one cooperative tick: a due reconnect attempt while disconnected,
// or frame processing and liveness checks while connected. Connection errors
// are absorbed and surface through Status; only ctx errors are returned.
func (c *Client) Poll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch c.conn.State {
	case domain.StateDisconnected:
		if c.retryDue(c.clock.Now()) {
			c.log.V(1).Info("retrying connection", "url", c.conn.URL(),
				"failures", c.backoff.ConsecutiveFailures)
			_ = c.attempt(ctx, true)
		}
	case domain.StateConnected:
		c.service()
	}
	return nil
}

// SendText writes one text frame
func (c *Client) SendText(payload []byte) error {
	return c.Send(domain.NewTextMessage(payload))
}

// Send writes msg as a single unfragmented frame
func (c *Client) Send(msg *domain.Message) error {
	if !c.conn.IsConnected() {
		return domain.ErrNotConnected
	}
	if err := c.write(msg.ToOpcode(), msg.Payload); err != nil {
		if errors.Is(err, domain.ErrTransport) {
			c.fail(err)
		}
		return err
	}
	return nil
}

// Emit sends a Socket.IO event packet 42["event",args...]
func (c *Client) Emit(event string, args ...any) error {
	if !c.conn.IsConnected() {
		return domain.ErrNotConnected
	}
	packet, err := infrastructure.EncodeEvent(event, args...)
	if err != nil {
		return err
	}
	return c.SendText(packet)
}

// IsConnected reports whether the handshake completed and the link is up
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// State returns the connection state
func (c *Client) State() domain.ConnectionState {
	return c.conn.State
}

// Status summarizes the connection for display
func (c *Client) Status() domain.Status {
	switch {
	case c.conn.IsConnected():
		return domain.StatusConnected
	case c.backoff.ManuallyDisconnected:
		return domain.StatusDisconnected
	case c.attempted && c.opts.AutoReconnect && c.conn.HasTarget():
		return domain.StatusReconnecting
	default:
		return domain.StatusNotConnected
	}
}

// ServerURL returns ws://host:port/path, or "" before the first Connect
func (c *Client) ServerURL() string {
	return c.conn.URL()
}

// Session returns a copy of the Socket.IO session
func (c *Client) Session() domain.Session {
	return c.session
}

// Failures returns the consecutive failure count
func (c *Client) Failures() uint {
	return c.backoff.ConsecutiveFailures
}

// NextRetry returns when the next reconnect attempt becomes due, or the zero
// time when none is scheduled.
func (c *Client) NextRetry() time.Time {
	if !c.conn.IsDisconnected() || !c.attempted || !c.opts.AutoReconnect ||
		c.backoff.ManuallyDisconnected || !c.conn.HasTarget() {
		return time.Time{}
	}
	return c.backoff.LastAttempt.Add(c.backoff.Delay())
}

func (c *Client) retryDue(now time.Time) bool {
	return c.attempted && c.opts.AutoReconnect && c.conn.HasTarget() && c.backoff.Due(now)
}

// requestPath is the resource path sent in the upgrade request
func (c *Client) requestPath() string {
	if !c.conn.SocketIO || !c.opts.AppendEIOQuery {
		return c.conn.Path
	}
	sep := "?"
	if strings.Contains(c.conn.Path, "?") {
		sep = "&"
	}
	return c.conn.Path + sep + c.opts.EIOQuery
}

// attempt opens a fresh port and performs the handshake
func (c *Client) attempt(ctx context.Context, retry bool) error {
	now := c.clock.Now()
	c.backoff.Attempt(now)
	c.metrics.ConnectAttempt(retry)
	if err := c.conn.TransitionTo(domain.StateConnecting); err != nil {
		return err
	}
	c.metrics.SetState(domain.StateConnecting)

	_, span := c.tracer.Start(ctx, "websocket.connect",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("websocket.url", c.conn.URL()),
			attribute.Bool("websocket.socketio", c.conn.SocketIO),
			attribute.Bool("websocket.retry", retry),
			attribute.Int("websocket.failures", int(c.backoff.ConsecutiveFailures)),
		),
	)
	defer span.End()

	c.port = c.factory()
	if err := c.open(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.fail(err)
		return err
	}
	span.SetStatus(codes.Ok, "")

	_ = c.conn.TransitionTo(domain.StateConnected)
	c.backoff.Succeed()
	c.session.Reset()
	c.fragments.reset()
	c.codec.Reset(c.port)
	c.liveness.Start(c.clock.Now(), c.conn.SocketIO)
	c.metrics.SetState(domain.StateConnected)
	c.log.Info("connected", "url", c.conn.URL(), "socketio", c.conn.SocketIO)
	return nil
}

func (c *Client) open() error {
	if err := c.port.Open(c.conn.Host, c.conn.Port); err != nil {
		return err
	}
	if err := c.handshaker.Perform(c.port, c.conn.Host, c.conn.Port, c.requestPath()); err != nil {
		c.metrics.HandshakeFailed()
		return err
	}
	return nil
}

// service processes one connected tick
func (c *Client) service() {
	for i := 0; i < c.opts.MaxFramesPerPoll && c.conn.IsConnected(); i++ {
		frame, err := c.codec.ReadFrame()
		if errors.Is(err, domain.ErrWouldBlock) {
			break
		}
		if err != nil {
			if domain.IsRecoverable(err) {
				c.metrics.ProtocolError(false)
				c.log.Info("dropping malformed frame", "error", err.Error())
				continue
			}
			if domain.IsDesync(err) {
				c.metrics.ProtocolError(true)
			}
			c.fail(err)
			return
		}
		c.handleFrame(frame)
	}
	if !c.conn.IsConnected() {
		return
	}

	if !c.port.IsOpen() && c.port.Available() == 0 {
		c.fail(&domain.TransportError{Op: "read", Err: domain.ErrConnectionLost})
		return
	}

	switch c.liveness.Tick(c.clock.Now()) {
	case infrastructure.LivenessSendPing:
		c.log.V(1).Info("sending ping")
		if err := c.write(domain.OpcodePing, nil); err != nil {
			c.fail(err)
		}
	case infrastructure.LivenessTimeout:
		c.fail(domain.ErrLivenessTimeout)
	}
}

func (c *Client) handleFrame(frame *domain.Frame) {
	c.metrics.FrameReceived(frame.Opcode)

	switch frame.Opcode {
	case domain.OpcodePing:
		c.log.V(1).Info("ping received, sending pong", "length", len(frame.Payload))
		if err := c.write(domain.OpcodePong, frame.Payload); err != nil {
			c.fail(err)
		}

	case domain.OpcodePong:
		c.log.V(1).Info("pong received")
		c.liveness.PongReceived()

	case domain.OpcodeClose:
		code := closeCode(frame.Payload)
		c.log.Info("server closed the connection", "code", code)
		_ = c.conn.TransitionTo(domain.StateClosing)
		c.sendClose(code)
		c.fail(domain.ErrServerClosed)

	default:
		c.handleData(frame)
	}
}

// handleData assembles fragmented messages and delivers complete ones
func (c *Client) handleData(frame *domain.Frame) {
	if frame.Opcode == domain.OpcodeContinuation {
		if !c.fragments.active() {
			c.metrics.ProtocolError(false)
			err := domain.NewProtocolError("continuation", domain.ErrUnexpectedContinue)
			c.log.Info("dropping frame", "error", err.Error())
			return
		}
		c.fragments.append(frame)
		if frame.FIN {
			op, payload, truncated := c.fragments.finish()
			c.deliver(op, payload, truncated)
		}
		return
	}

	if c.fragments.active() {
		c.log.Info("discarding unfinished fragmented message", "opcode", frame.Opcode)
		c.fragments.reset()
	}
	if !frame.FIN {
		c.fragments.start(frame)
		return
	}
	c.deliver(frame.Opcode, frame.Payload, frame.Truncated())
}

func (c *Client) deliver(op domain.Opcode, payload []byte, truncated bool) {
	msgType, err := domain.MessageTypeForOpcode(op)
	if err != nil {
		return
	}
	msg := &domain.Message{Type: msgType, Payload: payload, Truncated: truncated}
	if !c.conn.SocketIO || !msg.IsText() {
		c.emit(msg)
		return
	}

	res := c.envelope.Decode(msg.Payload)
	now := c.clock.Now()
	if res.Reply != "" {
		if err := c.write(domain.OpcodeText, []byte(res.Reply)); err != nil {
			c.fail(err)
			return
		}
	}
	if res.Opened {
		c.liveness.SetHeartbeat(c.session.HeartbeatWindow(), now)
	}
	if res.Ping {
		c.liveness.ServerPing(now)
	}
	if res.Close {
		c.fail(domain.ErrEngineClosed)
		return
	}
	if res.Payload != nil {
		event := domain.NewEventMessage(res.Payload)
		event.Truncated = truncated
		c.emit(event)
	}
}

func (c *Client) emit(msg *domain.Message) {
	c.metrics.MessageDelivered(msg)
	c.sink.OnMessage(msg)
}

func (c *Client) write(op domain.Opcode, payload []byte) error {
	n, err := c.codec.WriteFrame(op, payload)
	if err != nil {
		return err
	}
	c.metrics.FrameSent(op, n)
	return nil
}

// sendClose writes a Close frame, carrying code unless it is zero. Errors
// are ignored; the port is closed right after.
func (c *Client) sendClose(code uint16) {
	var payload []byte
	if code != 0 {
		payload = binary.BigEndian.AppendUint16(nil, code)
	}
	if err := c.write(domain.OpcodeClose, payload); err != nil {
		c.log.V(1).Info("close frame not sent", "error", err.Error())
	}
}

// fail ends the current attempt or connection and feeds backoff
func (c *Client) fail(err error) {
	c.teardown()
	if c.opts.AutoReconnect {
		c.backoff.Fail()
	}
	c.metrics.Disconnected(reason(err))
	c.logFailure(err)
}

// teardown closes the port and returns to Disconnected
func (c *Client) teardown() {
	if c.port != nil {
		_ = c.port.Close()
		c.port = nil
	}
	c.codec.Reset(nil)
	c.session.Reset()
	c.fragments.reset()
	if !c.conn.IsDisconnected() {
		_ = c.conn.TransitionTo(domain.StateDisconnected)
	}
	c.metrics.SetState(domain.StateDisconnected)
}

func (c *Client) logFailure(err error) {
	now := c.clock.Now()
	kv := []any{"url", c.conn.URL(), "failures", c.backoff.ConsecutiveFailures}
	if c.opts.AutoReconnect && !c.backoff.ManuallyDisconnected {
		kv = append(kv, "retryIn", c.backoff.Delay().String())
	}
	if !c.lastFailureLog.IsZero() && now.Sub(c.lastFailureLog) < failureLogInterval {
		c.log.V(1).Info("connection failed", append(kv, "error", err.Error())...)
		return
	}
	c.lastFailureLog = now
	c.log.Error(err, "connection failed", kv...)
}

// closeCode extracts the status code of a Close payload, or zero
func closeCode(payload []byte) uint16 {
	if len(payload) < 2 {
		return 0
	}
	return binary.BigEndian.Uint16(payload)
}

// reason labels a failure for metrics
func reason(err error) string {
	var herr *domain.HandshakeError
	switch {
	case errors.Is(err, domain.ErrLivenessTimeout):
		return "liveness"
	case errors.Is(err, domain.ErrServerClosed):
		return "server_close"
	case errors.Is(err, domain.ErrEngineClosed):
		return "engine_close"
	case errors.As(err, &herr):
		return "handshake"
	case domain.IsDesync(err):
		return "desync"
	default:
		return "transport"
	}
}
