package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/chatrelay/internal/app/orch"
)

func (g *Gateway) writeWait() time.Duration {
	if g.cfg.WriteWait > 0 {
		return g.cfg.WriteWait
	}
	return 5 * time.Second
}

func (g *Gateway) pongWait() time.Duration {
	if g.cfg.PongWait > 0 {
		return g.cfg.PongWait
	}
	return 60 * time.Second
}

func (g *Gateway) pingPeriod() time.Duration {
	if g.cfg.PingPeriod > 0 && g.cfg.PingPeriod < g.pongWait() {
		return g.cfg.PingPeriod
	}
	return g.pongWait() * 9 / 10
}

func (g *Gateway) writePump(ctx context.Context, c *WsConn) {
	ticker := time.NewTicker(g.pingPeriod())
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(g.writeWait()))
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(g.writeWait())); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(g.writeWait())); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		}
	}
}

// readPump owns the session: it feeds frames to the orchestrator one at a
// time and always deregisters the session when the socket goes away.
func (g *Gateway) readPump(ctx context.Context, cancel context.CancelFunc, sess *orch.Session, c *WsConn) {
	defer func() {
		g.Orch.Disconnect(sess)
		cancel()
		c.Close()
		log.Debug().Str("module", "signal").Str("sid", string(sess.ID())).Msg("readPump closed")
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(g.pongWait())); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(g.pongWait()))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			logReadError(sess, err)
			return
		}
		g.Orch.HandleFrame(ctx, sess, data)
	}
}
