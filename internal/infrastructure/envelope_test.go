package infrastructure

import (
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arena-timer/internal/domain"
)

func newTestEnvelope(requireAck bool) *Envelope {
	return NewEnvelope(&domain.Session{}, requireAck, logr.Discard())
}

func TestEnvelopeHandshakeSequencing(t *testing.T) {
	e := newTestEnvelope(false)

	res := e.Decode([]byte(`0{"sid":"Lbo5JLzTotvW3g2LAAAA","upgrades":[],"pingInterval":25000,"pingTimeout":20000}`))
	assert.True(t, res.Handled)
	assert.True(t, res.Opened)
	assert.Equal(t, "40", res.Reply)
	assert.True(t, e.Session().EngineIOOpen)
	assert.False(t, e.Session().SocketIOConnected, "not connected until the acknowledgement")
	assert.Equal(t, "Lbo5JLzTotvW3g2LAAAA", e.Session().SID)
	assert.Equal(t, 45*time.Second, e.Session().HeartbeatWindow())

	res = e.Decode([]byte(`40{"sid":"xyz"}`))
	assert.True(t, res.Handled)
	assert.Empty(t, res.Reply)
	assert.True(t, e.Session().Established())
}

func TestEnvelopeEventPayload(t *testing.T) {
	e := newTestEnvelope(false)

	res := e.Decode([]byte(`42["timer_update",{"action":"start"}]`))
	assert.False(t, res.Handled)
	assert.Equal(t, `["timer_update",{"action":"start"}]`, string(res.Payload))
}

func TestEnvelopeEventBeforeConnectAck(t *testing.T) {
	event := []byte(`42["timer_update",{"action":"stop"}]`)

	t.Run("forwarded by default", func(t *testing.T) {
		e := newTestEnvelope(false)
		e.Decode([]byte(`0{}`))
		res := e.Decode(event)
		assert.Equal(t, `["timer_update",{"action":"stop"}]`, string(res.Payload))
	})

	t.Run("dropped when acknowledgement is required", func(t *testing.T) {
		e := newTestEnvelope(true)
		e.Decode([]byte(`0{}`))
		assert.Nil(t, e.Decode(event).Payload)

		e.Decode([]byte(`40`))
		assert.NotNil(t, e.Decode(event).Payload)
	})
}

func TestEnvelopeControlPackets(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		handled bool
		reply   string
		ping    bool
		close   bool
	}{
		{"engine ping", "2", true, "3", true, false},
		{"engine ping probe", "2probe", true, "3probe", true, false},
		{"engine pong", "3", true, "", false, false},
		{"engine noop", "6", true, "", false, false},
		{"engine close", "1", true, "", false, true},
		{"socket disconnect", "41", true, "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnvelope(false)
			res := e.Decode([]byte(tt.raw))
			assert.Equal(t, tt.handled, res.Handled)
			assert.Equal(t, tt.reply, res.Reply)
			assert.Equal(t, tt.ping, res.Ping)
			assert.Equal(t, tt.close, res.Close)
			assert.Nil(t, res.Payload)
		})
	}
}

func TestEnvelopeCloseResetsSession(t *testing.T) {
	e := newTestEnvelope(false)
	e.Decode([]byte(`0{"sid":"a"}`))
	e.Decode([]byte(`40`))
	require.True(t, e.Session().Established())

	e.Decode([]byte(`1`))
	assert.False(t, e.Session().EngineIOOpen)
	assert.False(t, e.Session().SocketIOConnected)
}

func TestEnvelopeMalformedPacketsAreIsolated(t *testing.T) {
	e := newTestEnvelope(false)

	for _, raw := range []string{"", "9", "x{}", "4", "42", "43[1]", "44{\"message\":\"nope\"}", "4x", "0{not json"} {
		res := e.Decode([]byte(raw))
		assert.Nil(t, res.Payload, "packet %q must not produce a payload", raw)
	}

	// The decoder is still in sync
	res := e.Decode([]byte(`42["timer_update",{"action":"reset"}]`))
	assert.Equal(t, `["timer_update",{"action":"reset"}]`, string(res.Payload))
}

func TestEnvelopePayloadIsCopied(t *testing.T) {
	e := newTestEnvelope(false)
	raw := []byte(`42["a"]`)

	res := e.Decode(raw)
	raw[4] = 'b'
	assert.Equal(t, `["a"]`, string(res.Payload))
}

func TestEncodeEvent(t *testing.T) {
	out, err := EncodeEvent("timer_update", map[string]any{"action": "start"})
	require.NoError(t, err)
	assert.Equal(t, `42["timer_update",{"action":"start"}]`, string(out))

	out, err = EncodeEvent("hello")
	require.NoError(t, err)
	assert.Equal(t, `42["hello"]`, string(out))

	_, err = EncodeEvent("")
	assert.True(t, errors.Is(err, domain.ErrMissingEventName))

	_, err = EncodeEvent("bad", make(chan int))
	assert.Error(t, err)

	assert.Equal(t, "40", EncodeConnect())
	assert.Equal(t, "3", EncodePong())
}
