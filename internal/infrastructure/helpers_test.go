package infrastructure

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	"arena-timer/internal/domain"
	"arena-timer/internal/transport"
)

var epoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// constReader yields the same byte forever
type constReader byte

func (r constReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r)
	}
	return len(p), nil
}

func openMemory(t *testing.T) *transport.Memory {
	t.Helper()
	m := transport.NewMemory()
	require.NoError(t, m.Open("127.0.0.1", 8765))
	return m
}

func newTestCodec(t *testing.T, bufferSize int) (*FrameCodec, *transport.Memory, *ManualClock) {
	t.Helper()
	clock := NewManualClock(epoch)
	codec := NewFrameCodec(CodecOptions{
		BufferSize:  bufferSize,
		ReadTimeout: time.Second,
		Rand:        constReader(0x5a),
		Clock:       clock,
	}, logr.Discard())
	port := openMemory(t)
	codec.Reset(port)
	return codec, port, clock
}

// serverFrame builds a frame as a server would send it
func serverFrame(fin bool, opcode domain.Opcode, payload []byte, mask *[4]byte) []byte {
	b0 := byte(opcode)
	if fin {
		b0 |= 0x80
	}
	out := []byte{b0}

	var b1 byte
	if mask != nil {
		b1 = 0x80
	}
	n := len(payload)
	switch {
	case n <= 125:
		out = append(out, b1|byte(n))
	case n <= 65535:
		out = append(out, b1|126)
		out = binary.BigEndian.AppendUint16(out, uint16(n))
	default:
		out = append(out, b1|127)
		out = binary.BigEndian.AppendUint64(out, uint64(n))
	}

	body := append([]byte(nil), payload...)
	if mask != nil {
		out = append(out, mask[:]...)
		domain.Mask(body, *mask)
	}
	return append(out, body...)
}

// decodeClientFrame parses one masked client frame and returns its opcode and unmasked payload
func decodeClientFrame(t *testing.T, wire []byte) (domain.Opcode, []byte, []byte) {
	t.Helper()
	require.GreaterOrEqual(t, len(wire), 6)
	op := domain.Opcode(wire[0] & 0x0F)
	require.NotZero(t, wire[1]&0x80, "client frames must be masked")

	length := uint64(wire[1] & 0x7F)
	pos := 2
	switch length {
	case 126:
		length = uint64(binary.BigEndian.Uint16(wire[2:4]))
		pos = 4
	case 127:
		length = binary.BigEndian.Uint64(wire[2:10])
		pos = 10
	}
	var key [4]byte
	copy(key[:], wire[pos:pos+4])
	pos += 4

	require.GreaterOrEqual(t, uint64(len(wire)-pos), length)
	payload := append([]byte(nil), wire[pos:pos+int(length)]...)
	domain.Mask(payload, key)
	return op, payload, wire[pos+int(length):]
}
