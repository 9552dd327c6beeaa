package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/chatrelay/internal/adapters/auth"
	router "github.com/dkeye/chatrelay/internal/adapters/http"
	"github.com/dkeye/chatrelay/internal/adapters/signal"
	"github.com/dkeye/chatrelay/internal/adapters/store/memory"
	"github.com/dkeye/chatrelay/internal/app"
	"github.com/dkeye/chatrelay/internal/app/orch"
	"github.com/dkeye/chatrelay/internal/config"
	"github.com/dkeye/chatrelay/internal/domain"
)

type frame struct {
	Type       string           `json:"type"`
	ChatRoomID string           `json:"chatRoomId"`
	Messages   []domain.Message `json:"messages"`
	Message    json.RawMessage  `json:"message"`
}

func (f frame) chat(t *testing.T) domain.Message {
	t.Helper()
	var m domain.Message
	require.NoError(t, json.Unmarshal(f.Message, &m))
	return m
}

type testServer struct {
	*httptest.Server
	orch *orch.Orchestrator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Mode: "test",
		WS: config.WSConfig{
			ReadLimit:      4096,
			PingPeriod:     5 * time.Second,
			PongWait:       10 * time.Second,
			WriteWait:      time.Second,
			SendBuffer:     16,
			AllowedOrigins: []string{"https://chat.example.com"},
		},
		Auth: config.AuthConfig{Mode: "static", Timeout: time.Second},
	}
	st := memory.New(domain.Room{ID: "general"}, domain.Room{ID: "random"})
	reg := app.NewRegistry()
	o := &orch.Orchestrator{
		Registry:   reg,
		Dispatcher: app.NewDispatcher(reg, app.SimplePolicy{}),
		Sequencer:  app.NewSequencer(),
		Rooms:      st,
		Messages:   st,
		Limits:     orch.Limits{HistoryLimit: 50},
	}
	verifier := auth.NewStaticVerifier(map[string]string{"tok-alice": "alice", "tok-bob": "bob"})
	gw := signal.NewGateway(o, verifier, cfg.WS, cfg.Auth)

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(router.SetupRouter(ctx, cfg, o, gw))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{Server: srv, orch: o}
}

func (s *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/api/ws"
}

func (s *testServer) dial(t *testing.T, protocols []string, header http.Header) *websocket.Conn {
	t.Helper()
	d := websocket.Dialer{Subprotocols: protocols, HandshakeTimeout: 2 * time.Second}
	conn, resp, err := d.Dial(s.wsURL(), header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, c *websocket.Conn, v string) {
	t.Helper()
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(v)))
}

func read(t *testing.T, c *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, c.ReadJSON(&f))
	return f
}

func TestHandshakeRejected(t *testing.T) {
	s := newTestServer(t)
	cases := map[string]struct {
		protocols []string
		header    http.Header
	}{
		"no credential":      {},
		"unknown token":      {protocols: []string{"tok-mallory"}},
		"bad bearer header":  {header: http.Header{"Authorization": []string{"Bearer nope"}}},
		"bearer without tok": {protocols: []string{"bearer", "nope"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			d := websocket.Dialer{Subprotocols: tc.protocols, HandshakeTimeout: 2 * time.Second}
			conn, resp, err := d.Dial(s.wsURL(), tc.header)
			if conn != nil {
				_ = conn.Close()
			}
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
	assert.Zero(t, s.orch.Registry.SessionCount())
}

func TestRejectedHandshakeClosesSocket(t *testing.T) {
	s := newTestServer(t)
	conn, err := net.Dial("tcp", s.Listener.Addr().String())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	req := "GET /api/ws HTTP/1.1\r\n" +
		"Host: " + s.Listener.Addr().String() + "\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Protocol: bad-token\r\n\r\n"
	_, err = conn.Write([]byte(req))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, nil)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"error":"unauthorized"}`, string(body))
	assert.True(t, resp.Close)

	_, err = br.ReadByte()
	assert.ErrorIs(t, err, io.EOF, "server must close the socket")
	assert.Zero(t, s.orch.Registry.SessionCount())
}

func TestDisallowedOrigin(t *testing.T) {
	s := newTestServer(t)
	d := websocket.Dialer{Subprotocols: []string{"tok-alice"}}
	_, resp, err := d.Dial(s.wsURL(), http.Header{"Origin": []string{"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSubprotocolEchoed(t *testing.T) {
	s := newTestServer(t)
	a := s.dial(t, []string{"tok-alice"}, nil)
	assert.Equal(t, "tok-alice", a.Subprotocol())
	b := s.dial(t, []string{"bearer", "tok-bob"}, nil)
	assert.Equal(t, "bearer", b.Subprotocol())
	c := s.dial(t, nil, http.Header{
		"Authorization": []string{"Bearer tok-bob"},
		"Origin":        []string{"https://chat.example.com"},
	})
	assert.Empty(t, c.Subprotocol())
}

func TestChatOverWebSocket(t *testing.T) {
	s := newTestServer(t)
	alice := s.dial(t, []string{"tok-alice"}, nil)
	bob := s.dial(t, []string{"bearer", "tok-bob"}, nil)

	send(t, alice, `{"type":"message","content":"too early"}`)
	f := read(t, alice)
	assert.Equal(t, "error", f.Type)

	send(t, alice, `{"type":"join","chatRoomId":"general","userId":"alice"}`)
	f = read(t, alice)
	require.Equal(t, "joinSuccess", f.Type)
	assert.Empty(t, f.Messages)

	send(t, alice, `{"type":"message","content":"hi"}`)
	f = read(t, alice)
	require.Equal(t, "message", f.Type)
	assert.Equal(t, "hi", f.chat(t).Content)

	send(t, bob, `{"type":"join","chatRoomId":"general"}`)
	f = read(t, bob)
	require.Equal(t, "joinSuccess", f.Type)
	require.Len(t, f.Messages, 1)
	assert.Equal(t, "hi", f.Messages[0].Content)

	send(t, alice, `{"type":"switchRoom","chatRoomId":"random"}`)
	f = read(t, alice)
	require.Equal(t, "switchSuccess", f.Type)
	assert.Equal(t, "random", f.ChatRoomID)

	send(t, bob, `{"type":"message","content":"still here"}`)
	f = read(t, bob)
	require.Equal(t, "message", f.Type)

	// Bob's message was fanned out before this point; alice must not see it.
	send(t, alice, `{"type":"message","content":"in random"}`)
	f = read(t, alice)
	require.Equal(t, "message", f.Type)
	m := f.chat(t)
	assert.Equal(t, "in random", m.Content)
	assert.Equal(t, domain.RoomID("random"), m.ChatRoomID)

	resp, err := http.Get(s.URL + "/api/stats")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var stats struct {
		Sessions int `json:"sessions"`
		Rooms    []struct {
			ID          string `json:"id"`
			MemberCount int    `json:"member_count"`
		} `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Sessions)
	assert.Len(t, stats.Rooms, 2)
}

func TestCloseDeregisters(t *testing.T) {
	s := newTestServer(t)
	alice := s.dial(t, []string{"tok-alice"}, nil)
	send(t, alice, `{"type":"join","chatRoomId":"general"}`)
	read(t, alice)
	require.Len(t, s.orch.Registry.MembersOf("general"), 1)

	require.NoError(t, alice.Close())
	assert.Eventually(t, func() bool {
		return s.orch.Registry.SessionCount() == 0 && len(s.orch.Registry.MembersOf("general")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOversizedFrameClosesConnection(t *testing.T) {
	s := newTestServer(t)
	alice := s.dial(t, []string{"tok-alice"}, nil)
	send(t, alice, `{"type":"message","content":"`+strings.Repeat("x", 8192)+`"}`)
	assert.Eventually(t, func() bool {
		return s.orch.Registry.SessionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
