package infrastructure

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"arena-timer/internal/domain"
	"arena-timer/internal/transport"
	"arena-timer/pkg/protocol"
)

// Handshake timeouts
const (
	DefaultResponseTimeout = 5 * time.Second
	DefaultHeaderTimeout   = 2 * time.Second

	// maxLineLength caps one response line; longer lines are cut and the rest skipped
	maxLineLength = 1024
)

// HandshakeOptions configures a Handshaker
type HandshakeOptions struct {
	// ResponseTimeout bounds the wait for the first response byte
	ResponseTimeout time.Duration
	// HeaderTimeout bounds reading the status line, and separately the headers
	HeaderTimeout time.Duration
	// VerifyAccept rejects a response whose Sec-WebSocket-Accept does not match the key
	VerifyAccept bool
	// Rand supplies the key nonce; crypto/rand when nil
	Rand io.Reader
	// Clock drives the deadlines; the wall clock when nil
	Clock Clock
}

// Handshaker performs the client side of the HTTP upgrade exchange
type Handshaker struct {
	opts   HandshakeOptions
	reader portReader
	log    logr.Logger
}

// NewHandshaker creates a Handshaker
func NewHandshaker(opts HandshakeOptions, log logr.Logger) *Handshaker {
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = DefaultResponseTimeout
	}
	if opts.HeaderTimeout <= 0 {
		opts.HeaderTimeout = DefaultHeaderTimeout
	}
	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	return &Handshaker{
		opts:   opts,
		reader: portReader{clock: opts.Clock},
		log:    log,
	}
}

// GenerateKey returns a base64-encoded 16-byte nonce for Sec-WebSocket-Key
func (h *Handshaker) GenerateKey() (string, error) {
	nonce := make([]byte, protocol.KeyNonceSize)
	if _, err := io.ReadFull(h.opts.Rand, nonce); err != nil {
		return "", fmt.Errorf("handshake nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(nonce), nil
}

// ExpectedAccept computes the Sec-WebSocket-Accept value for key.
// According to RFC 6455: base64(SHA1(key + "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"))
func ExpectedAccept(key string) string {
	hash := sha1.Sum([]byte(key + protocol.WebSocketGUID))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// BuildRequest renders the upgrade request for path on host:port
func BuildRequest(host string, port uint16, path, key string) []byte {
	hostHeader := host
	if port != 80 {
		hostHeader = net.JoinHostPort(host, strconv.Itoa(int(port)))
	}

	var b strings.Builder
	b.WriteString("GET " + path + " HTTP/1.1\r\n")
	b.WriteString(protocol.HeaderHost + ": " + hostHeader + "\r\n")
	b.WriteString(protocol.HeaderUpgrade + ": " + protocol.HeaderValueWebSocket + "\r\n")
	b.WriteString(protocol.HeaderConnection + ": " + protocol.HeaderValueUpgrade + "\r\n")
	b.WriteString(protocol.HeaderSecWebSocketKey + ": " + key + "\r\n")
	b.WriteString(protocol.HeaderSecWebSocketVersion + ": " + protocol.WebSocketVersion + "\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// Perform writes the upgrade request on an open port and validates the
// response. Bytes following the header block are left unread on the port.
func (h *Handshaker) Perform(port transport.Port, host string, portNum uint16, path string) error {
	if !port.IsOpen() {
		return &domain.TransportError{Op: "handshake", Err: domain.ErrPortNotOpen}
	}
	h.reader.reset(port)

	key, err := h.GenerateKey()
	if err != nil {
		return err
	}
	if _, err := port.Write(BuildRequest(host, portNum, path, key)); err != nil {
		return err
	}

	clock := h.opts.Clock
	if !h.reader.await(1, clock.Now().Add(h.opts.ResponseTimeout)) {
		return &domain.HandshakeError{Err: fmt.Errorf("%w: no response", domain.ErrHandshakeTimeout)}
	}

	statusLine, complete := h.readLine(clock.Now().Add(h.opts.HeaderTimeout))
	if !complete {
		return &domain.HandshakeError{StatusLine: statusLine,
			Err: fmt.Errorf("%w: status line", domain.ErrHandshakeTimeout)}
	}
	if !isSwitchingProtocols(statusLine) {
		return &domain.HandshakeError{StatusLine: statusLine, Err: domain.ErrHandshakeRejected}
	}

	accept, err := h.drainHeaders(clock.Now().Add(h.opts.HeaderTimeout))
	if err != nil {
		return &domain.HandshakeError{StatusLine: statusLine, Err: err}
	}

	if h.opts.VerifyAccept && accept != ExpectedAccept(key) {
		return &domain.HandshakeError{StatusLine: statusLine,
			Err: fmt.Errorf("%w: Sec-WebSocket-Accept %q does not match key", domain.ErrHandshakeRejected, accept)}
	}

	h.log.V(1).Info("handshake complete", "status", statusLine)
	return nil
}

// readLine reads up to CRLF. It reports false if the deadline passed first.
func (h *Handshaker) readLine(deadline time.Time) (string, bool) {
	var line []byte
	for {
		c, ok := h.reader.readBefore(deadline)
		if !ok {
			return string(line), false
		}
		if c == '\n' {
			return strings.TrimRight(string(line), "\r"), true
		}
		if len(line) < maxLineLength {
			line = append(line, c)
		}
	}
}

// drainHeaders skips header lines until the blank line, keeping the accept value
func (h *Handshaker) drainHeaders(deadline time.Time) (string, error) {
	var accept string
	for {
		line, ok := h.readLine(deadline)
		if !ok {
			return "", fmt.Errorf("%w: headers", domain.ErrHandshakeTimeout)
		}
		if line == "" {
			return accept, nil
		}
		name, value, found := strings.Cut(line, ":")
		if found && strings.EqualFold(strings.TrimSpace(name), protocol.HeaderSecWebSocketAccept) {
			accept = strings.TrimSpace(value)
		}
	}
}

// isSwitchingProtocols checks the status code of an HTTP status line
func isSwitchingProtocols(statusLine string) bool {
	fields := strings.Fields(statusLine)
	return len(fields) >= 2 && strings.HasPrefix(fields[0], "HTTP/") && fields[1] == protocol.StatusSwitchingProtocols
}
