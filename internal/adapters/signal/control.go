package signal

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/chatrelay/internal/app/orch"
)

// credential is what the client presented at handshake.
type credential struct {
	Token string
	// Subprotocol is echoed in the upgrade response; browsers drop the
	// connection if none of their offered protocols is selected.
	Subprotocol string
}

// credentialFrom reads the bearer token from Sec-WebSocket-Protocol, either
// as the single offered protocol or as the pair "bearer, <token>". Non-browser
// clients may use an Authorization: Bearer header instead.
func credentialFrom(r *http.Request) credential {
	protos := websocket.Subprotocols(r)
	switch {
	case len(protos) >= 2 && strings.EqualFold(protos[0], "bearer"):
		return credential{Token: protos[1], Subprotocol: protos[0]}
	case len(protos) == 1:
		return credential{Token: protos[0], Subprotocol: protos[0]}
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return credential{Token: strings.TrimSpace(h[7:])}
	}
	return credential{}
}

func logReadError(sess *orch.Session, err error) {
	ev := log.Info()
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		ev = log.Warn()
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		ev = log.Warn()
	}
	ev.Err(err).Str("module", "signal").Str("sid", string(sess.ID())).Str("user", string(sess.UserID())).Msg("connection closed")
}
