package infrastructure

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"

	"arena-timer/internal/domain"
	"arena-timer/internal/transport"
	"arena-timer/pkg/protocol"
)

// DefaultReadTimeout bounds each wait for frame bytes
const DefaultReadTimeout = time.Second

// CodecOptions configures a FrameCodec
type CodecOptions struct {
	// ReadTimeout bounds each wait for header, mask or payload bytes
	ReadTimeout time.Duration
	// BufferSize is the receive buffer capacity
	BufferSize int
	// Rand supplies masking keys; crypto/rand when nil
	Rand io.Reader
	// Clock drives the read deadlines; the wall clock when nil
	Clock Clock
}

// FrameCodec reads and writes RFC 6455 frames on a Port. Outgoing frames are
// always masked; incoming payloads are stored up to the receive buffer's
// capacity and the remainder is drained so the stream stays aligned.
type FrameCodec struct {
	reader      portReader
	buf         *domain.ReceiveBuffer
	readTimeout time.Duration
	rand        io.Reader
	log         logr.Logger
}

// NewFrameCodec creates a codec with no port attached
func NewFrameCodec(opts CodecOptions, log logr.Logger) *FrameCodec {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	return &FrameCodec{
		reader:      portReader{clock: opts.Clock},
		buf:         domain.NewReceiveBuffer(opts.BufferSize),
		readTimeout: opts.ReadTimeout,
		rand:        opts.Rand,
		log:         log,
	}
}

// Reset attaches the codec to port and forgets any state from the previous one
func (c *FrameCodec) Reset(port transport.Port) {
	c.reader.reset(port)
	c.buf.Reset()
}

// BufferSize returns the receive buffer capacity
func (c *FrameCodec) BufferSize() int {
	return c.buf.Cap()
}

// WriteFrame masks payload with a fresh key and writes one final frame
func (c *FrameCodec) WriteFrame(opcode domain.Opcode, payload []byte) (int, error) {
	if c.reader.port == nil {
		return 0, &domain.TransportError{Op: "write", Err: domain.ErrPortNotOpen}
	}

	var key [4]byte
	if _, err := io.ReadFull(c.rand, key[:]); err != nil {
		return 0, fmt.Errorf("masking key: %w", err)
	}

	wire, err := EncodeFrame(nil, opcode, payload, key)
	if err != nil {
		return 0, err
	}

	n, err := c.reader.port.Write(wire)
	if err != nil {
		return n, err
	}
	c.log.V(2).Info("frame sent", "opcode", opcode, "length", len(payload))
	return n, nil
}

// EncodeFrame appends a final, masked client frame to dst. Lengths up to 125
// use the 7-bit form, up to 65535 the 16-bit form, anything larger the 64-bit
// form with a zero high word; payloads over 4 GiB-1 are refused.
func EncodeFrame(dst []byte, opcode domain.Opcode, payload []byte, key [4]byte) ([]byte, error) {
	length := uint64(len(payload))
	if length > protocol.MaxEncodablePayload {
		return dst, fmt.Errorf("%w: %d bytes", domain.ErrPayloadTooLarge, length)
	}
	if opcode.IsControl() && length > protocol.MaxControlFramePayloadSize {
		return dst, fmt.Errorf("%w: control frame of %d bytes", domain.ErrInvalidFrameStructure, length)
	}

	dst = append(dst, protocol.FinBit|byte(opcode))

	switch {
	case length <= protocol.MaxControlFramePayloadSize:
		dst = append(dst, protocol.MaskBit|byte(length))
	case length <= protocol.Max16BitPayload:
		dst = append(dst, protocol.MaskBit|protocol.PayloadLen16Bit)
		dst = binary.BigEndian.AppendUint16(dst, uint16(length))
	default:
		dst = append(dst, protocol.MaskBit|protocol.PayloadLen64Bit)
		dst = binary.BigEndian.AppendUint32(dst, 0)
		dst = binary.BigEndian.AppendUint32(dst, uint32(length))
	}

	dst = append(dst, key[:]...)

	start := len(dst)
	dst = append(dst, payload...)
	domain.Mask(dst[start:], key)
	return dst, nil
}

// ReadFrame decodes the next frame. It returns domain.ErrWouldBlock when fewer
// than two header bytes are available on an open port, and a TransportError
// once the port is closed with no complete header left. The returned payload aliases the
// receive buffer and is only valid until the next call.
//
// Errors are either a *domain.TransportError, or a *domain.ProtocolError whose
// Desync flag says whether the stream is still aligned. A frame that failed
// header validation is returned with its error after its payload was drained.
func (c *FrameCodec) ReadFrame() (*domain.Frame, error) {
	if c.reader.port == nil {
		return nil, &domain.TransportError{Op: "read", Err: domain.ErrPortNotOpen}
	}
	if !c.reader.buffered(2) {
		if !c.reader.port.IsOpen() {
			return nil, &domain.TransportError{Op: "read", Err: domain.ErrConnectionLost}
		}
		return nil, domain.ErrWouldBlock
	}

	b0, err := c.reader.next()
	if err != nil {
		return nil, err
	}
	b1, err := c.reader.next()
	if err != nil {
		return nil, domain.NewDesyncError("header", err)
	}

	frame := &domain.Frame{
		FIN:    b0&protocol.FinBit != 0,
		RSV:    b0 & protocol.RSVBits,
		Opcode: domain.Opcode(b0 & protocol.OpcodeBits),
		Masked: b1&protocol.MaskBit != 0,
	}

	length, err := c.readLength(uint64(b1 & protocol.LengthBits))
	if err != nil {
		return nil, err
	}
	frame.PayloadLen = length

	if frame.Masked {
		for i := range frame.MaskingKey {
			b, ok := c.reader.readBefore(c.deadline())
			if !ok {
				return nil, domain.NewDesyncError("masking key", io.ErrUnexpectedEOF)
			}
			frame.MaskingKey[i] = b
		}
	}

	if err := c.readPayload(frame); err != nil {
		return frame, err
	}

	if frame.Truncated() {
		c.log.V(1).Info("payload truncated to receive buffer",
			"opcode", frame.Opcode, "declared", frame.PayloadLen, "kept", len(frame.Payload))
	}

	if err := frame.Validate(); err != nil {
		return frame, domain.NewProtocolError("frame header", err)
	}
	c.log.V(2).Info("frame received", "opcode", frame.Opcode, "fin", frame.FIN, "length", frame.PayloadLen)
	return frame, nil
}

// readLength resolves the 7-bit length indicator into the declared length
func (c *FrameCodec) readLength(indicator uint64) (uint64, error) {
	var size int
	switch indicator {
	case protocol.PayloadLen16Bit:
		size = 2
	case protocol.PayloadLen64Bit:
		size = 8
	default:
		return indicator, nil
	}

	if !c.reader.await(size, c.deadline()) {
		return 0, domain.NewDesyncError("extended length", io.ErrUnexpectedEOF)
	}
	var length uint64
	for i := 0; i < size; i++ {
		b, err := c.reader.next()
		if err != nil {
			return 0, domain.NewDesyncError("extended length", err)
		}
		length = length<<8 | uint64(b)
	}

	// Only the low 32 bits of a 64-bit length are supported
	if length>>32 != 0 {
		return 0, domain.NewDesyncError("extended length",
			fmt.Errorf("%w: declared %d bytes", domain.ErrPayloadTooLarge, length))
	}
	return length, nil
}

// readPayload stores up to the buffer capacity, unmasking as it reads, and
// consumes the rest of the declared length without storing it.
func (c *FrameCodec) readPayload(frame *domain.Frame) error {
	c.buf.Reset()
	for i := uint64(0); i < frame.PayloadLen; i++ {
		b, ok := c.reader.readBefore(c.deadline())
		if !ok {
			frame.Payload = c.buf.Bytes()
			return domain.NewDesyncError("payload",
				fmt.Errorf("%w: got %d of %d bytes", io.ErrUnexpectedEOF, i, frame.PayloadLen))
		}
		if frame.Masked {
			b ^= frame.MaskingKey[i%4]
		}
		_ = c.buf.WriteByte(b)
	}
	frame.Payload = c.buf.Bytes()
	return nil
}

func (c *FrameCodec) deadline() time.Time {
	return c.reader.clock.Now().Add(c.readTimeout)
}
