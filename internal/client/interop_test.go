package client

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arena-timer/internal/domain"
	"arena-timer/internal/transport"
)

// lockedSink is a recordingSink safe to read from the test goroutine while polling
type lockedSink struct {
	mu   sync.Mutex
	sink recordingSink
}

func (s *lockedSink) OnMessage(msg *domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.OnMessage(msg)
}

func (s *lockedSink) payloads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink.payloads()
}

func splitHostPort(t *testing.T, srv *httptest.Server) (string, uint16) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.ParseUint(portStr, 10, 16)
	require.NoError(t, err)
	return host, uint16(port)
}

// pollUntil polls c until cond holds or the timeout expires
func pollUntil(t *testing.T, c *Client, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		require.NoError(t, c.Poll(context.Background()))
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func newTCPClient(sink domain.MessageSink, mutate func(*Options)) *Client {
	opts := DefaultOptions()
	opts.VerifyAccept = true
	opts.Logger = logr.Discard()
	if mutate != nil {
		mutate(&opts)
	}
	return New(transport.TCPFactory(time.Second), sink, opts)
}

func TestInteropWithGorillaServer(t *testing.T) {
	pongs := make(chan string, 1)
	received := make(chan string, 1)
	closed := make(chan int, 1)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		ws.SetPongHandler(func(data string) error {
			pongs <- data
			return nil
		})
		_ = ws.WriteControl(websocket.PingMessage, []byte("hb-1"), time.Now().Add(time.Second))
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"action":"start"}`))

		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				if ce, ok := err.(*websocket.CloseError); ok {
					closed <- ce.Code
				}
				return
			}
			if mt == websocket.TextMessage {
				received <- string(data)
			}
		}
	}))
	defer srv.Close()

	sink := &lockedSink{}
	c := newTCPClient(sink, nil)
	host, port := splitHostPort(t, srv)

	require.NoError(t, c.Connect(context.Background(), host, port, "/timer"))
	require.True(t, pollUntil(t, c, 5*time.Second, func() bool { return len(sink.payloads()) == 1 }))
	assert.Equal(t, []string{`{"action":"start"}`}, sink.payloads())

	require.NoError(t, c.SendText([]byte("hello from the arena")))
	select {
	case got := <-received:
		assert.Equal(t, "hello from the arena", got)
	case <-time.After(5 * time.Second):
		t.Fatal("server never received the text frame")
	}

	select {
	case got := <-pongs:
		assert.Equal(t, "hb-1", got)
	case <-time.After(5 * time.Second):
		t.Fatal("server never received the pong")
	}

	c.Disconnect()
	select {
	case code := <-closed:
		assert.Equal(t, websocket.CloseNormalClosure, code)
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw the close frame")
	}
	assert.Equal(t, domain.StatusDisconnected, c.Status())
}

func TestInteropSocketIOServer(t *testing.T) {
	acks := make(chan string, 1)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("EIO") != "4" || r.URL.Query().Get("transport") != "websocket" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		_ = ws.WriteMessage(websocket.TextMessage,
			[]byte(`0{"sid":"abc","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`))
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		acks <- string(data)
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"ns1"}`))
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`42["timer_update",{"action":"reset","minutes":5}]`))

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	sink := &lockedSink{}
	c := newTCPClient(sink, nil)
	host, port := splitHostPort(t, srv)

	require.NoError(t, c.Connect(context.Background(), host, port, "/socket.io/"))
	require.True(t, pollUntil(t, c, 5*time.Second, func() bool { return len(sink.payloads()) == 1 }))

	assert.Equal(t, "40", <-acks)
	assert.Equal(t, []string{`["timer_update",{"action":"reset","minutes":5}]`}, sink.payloads())
	assert.True(t, c.Session().Established())
	assert.Equal(t, "abc", c.Session().SID)

	c.Disconnect()
}

func TestInteropHandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTCPClient(nil, nil)
	host, port := splitHostPort(t, srv)

	err := c.Connect(context.Background(), host, port, "/nope")
	assert.ErrorIs(t, err, domain.ErrHandshakeRejected)
	assert.Equal(t, domain.StatusReconnecting, c.Status())
}
