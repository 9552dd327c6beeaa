package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/chatrelay/internal/app/orch"
	"github.com/dkeye/chatrelay/internal/config"
	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
)

// WsConn is the adapter-owned SignalConnection over one WebSocket.
// Frames are queued on send and written by the write pump only.
type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsConn(ws *websocket.Conn, buffer int) *WsConn {
	if buffer <= 0 {
		buffer = 64
	}
	return &WsConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

type Gateway struct {
	Orch     *orch.Orchestrator
	Verifier core.IdentityVerifier

	cfg         config.WSConfig
	authTimeout time.Duration
	origins     *originPolicy
	handshakes  *HandshakeLimiter
	upgrader    websocket.Upgrader
}

func NewGateway(o *orch.Orchestrator, v core.IdentityVerifier, ws config.WSConfig, auth config.AuthConfig) *Gateway {
	g := &Gateway{
		Orch:        o,
		Verifier:    v,
		cfg:         ws,
		authTimeout: auth.Timeout,
		origins:     newOriginPolicy(ws.AllowedOrigins),
	}
	if ws.HandshakeLimit > 0 {
		g.handshakes = NewHandshakeLimiter(ws.HandshakeLimit, ws.HandshakeWindow)
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.origins.check,
	}
	return g
}

// Handle authenticates the handshake and, only on success, upgrades the
// connection and starts its pumps. ctx is the server lifetime context.
func (g *Gateway) Handle(ctx context.Context, c *gin.Context) {
	if g.handshakes != nil && !g.handshakes.Allow(c.ClientIP()) {
		log.Warn().Str("module", "signal").Str("ip", c.ClientIP()).Msg("handshake rate limited")
		reject(c, http.StatusTooManyRequests, domain.MsgRateLimited)
		return
	}

	cred := credentialFrom(c.Request)
	user, err := g.authenticate(c.Request.Context(), cred)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("ip", c.ClientIP()).Msg("handshake rejected")
		reject(c, http.StatusUnauthorized, domain.ClientMessage(err))
		return
	}

	var header http.Header
	if cred.Subprotocol != "" {
		header = http.Header{"Sec-Websocket-Protocol": []string{cred.Subprotocol}}
	}
	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, header)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("user", string(user)).Msg("ws upgrade")
		return
	}
	if g.cfg.ReadLimit > 0 {
		ws.SetReadLimit(g.cfg.ReadLimit)
	}

	conn := newWsConn(ws, g.cfg.SendBuffer)
	connCtx, connCancel := context.WithCancel(ctx)
	sess := g.Orch.Connect(user, conn, connCancel)
	log.Info().Str("module", "signal").Str("sid", string(sess.ID())).Str("user", string(user)).Str("ip", c.ClientIP()).Msg("new WS connection")

	go g.writePump(connCtx, conn)
	go g.readPump(connCtx, connCancel, sess, conn)
}

// authenticate runs the verifier within the auth timeout. Every failure,
// including the timeout, is a KindAuth error.
func (g *Gateway) authenticate(ctx context.Context, cred credential) (domain.UserID, error) {
	vctx, cancel := context.WithTimeout(ctx, g.timeout())
	defer cancel()
	user, err := g.Verifier.Verify(vctx, cred.Token)
	if err != nil {
		return "", domain.E(domain.KindAuth, domain.MsgUnauthorized, err)
	}
	return user, nil
}

// reject answers a refused handshake and closes the socket after the response.
func reject(c *gin.Context, status int, msg string) {
	c.Header("Connection", "close")
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func (g *Gateway) timeout() time.Duration {
	if g.authTimeout > 0 {
		return g.authTimeout
	}
	return 5 * time.Second
}
