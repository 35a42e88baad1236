package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"arena-timer/internal/domain"
	"arena-timer/internal/infrastructure"
	"arena-timer/internal/transport"
	"arena-timer/pkg/protocol"
)

var epoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

const switchingProtocols = "HTTP/1.1 101 Switching Protocols\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: Upgrade\r\n" +
	"Sec-WebSocket-Accept: %s\r\n" +
	"\r\n"

// upgradingPort returns an open-able port that answers the first write, the
// upgrade request, with response. Later writes are only recorded.
func upgradingPort(response string) *transport.Memory {
	port := transport.NewMemory()
	var once sync.Once
	port.OnWrite = func(m *transport.Memory, p []byte) {
		once.Do(func() {
			req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(p)))
			if err != nil {
				return
			}
			accept := infrastructure.ExpectedAccept(req.Header.Get(protocol.HeaderSecWebSocketKey))
			m.Feed([]byte(strings.ReplaceAll(response, "%s", accept)))
		})
	}
	return port
}

// recordingSink collects delivered messages, copying their payloads
type recordingSink struct {
	messages []*domain.Message
}

func (s *recordingSink) OnMessage(msg *domain.Message) {
	cp := *msg
	cp.Payload = append([]byte(nil), msg.Payload...)
	s.messages = append(s.messages, &cp)
}

func (s *recordingSink) payloads() []string {
	out := make([]string, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, string(m.Payload))
	}
	return out
}

type testRig struct {
	client *Client
	clock  *infrastructure.ManualClock
	sink   *recordingSink
	tracer *recordingTracer
}

func newRig(t *testing.T, mutate func(*Options), ports ...*transport.Memory) *testRig {
	t.Helper()
	clock := infrastructure.NewManualClock(epoch)
	sink := &recordingSink{}
	tracer := &recordingTracer{}

	opts := DefaultOptions()
	opts.Clock = clock
	opts.Tracer = tracer
	opts.Logger = logr.Discard()
	if mutate != nil {
		mutate(&opts)
	}
	return &testRig{
		client: New(transport.MemoryFactory(ports...), sink, opts),
		clock:  clock,
		sink:   sink,
		tracer: tracer,
	}
}

func (r *testRig) connect(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, r.client.Connect(context.Background(), "10.0.0.5", 8765, path))
	require.True(t, r.client.IsConnected())
}

func (r *testRig) poll(t *testing.T) {
	t.Helper()
	require.NoError(t, r.client.Poll(context.Background()))
}

// serverFrame builds an unmasked frame as a server sends it
func serverFrame(fin bool, opcode domain.Opcode, payload []byte) []byte {
	b0 := byte(opcode)
	if fin {
		b0 |= protocol.FinBit
	}
	out := []byte{b0}
	switch n := len(payload); {
	case n <= 125:
		out = append(out, byte(n))
	case n <= 65535:
		out = append(out, protocol.PayloadLen16Bit)
		out = binary.BigEndian.AppendUint16(out, uint16(n))
	default:
		out = append(out, protocol.PayloadLen64Bit)
		out = binary.BigEndian.AppendUint64(out, uint64(n))
	}
	return append(out, payload...)
}

func textFrame(s string) []byte {
	return serverFrame(true, domain.OpcodeText, []byte(s))
}

// clientFrames decodes everything the client wrote since the last call,
// skipping the upgrade request if it is still in the record.
func clientFrames(t *testing.T, port *transport.Memory) []*domain.Frame {
	t.Helper()
	wire := port.TakeWritten()
	if bytes.HasPrefix(wire, []byte("GET ")) {
		end := bytes.Index(wire, []byte("\r\n\r\n"))
		require.GreaterOrEqual(t, end, 0)
		wire = wire[end+4:]
	}

	reader := transport.NewMemory()
	require.NoError(t, reader.Open("client", 0))
	reader.Feed(wire)
	codec := infrastructure.NewFrameCodec(infrastructure.CodecOptions{
		BufferSize: 1 << 16,
		Clock:      infrastructure.NewManualClock(epoch),
	}, logr.Discard())
	codec.Reset(reader)

	var frames []*domain.Frame
	for {
		f, err := codec.ReadFrame()
		if errors.Is(err, domain.ErrWouldBlock) {
			return frames
		}
		require.NoError(t, err)
		require.True(t, f.Masked, "client frames are masked")
		cp := *f
		cp.Payload = append([]byte(nil), f.Payload...)
		frames = append(frames, &cp)
	}
}

type recordingSpan struct {
	noop.Span
	name   string
	status codes.Code
	errs   []error
	ended  bool
}

func (s *recordingSpan) SetStatus(code codes.Code, _ string) { s.status = code }

func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) { s.errs = append(s.errs, err) }

func (s *recordingSpan) End(...trace.SpanEndOption) { s.ended = true }

// recordingTracer keeps every span it starts
type recordingTracer struct {
	noop.Tracer
	spans []*recordingSpan
}

func (r *recordingTracer) Start(ctx context.Context, name string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	s := &recordingSpan{name: name}
	r.spans = append(r.spans, s)
	return trace.ContextWithSpan(ctx, s), s
}
