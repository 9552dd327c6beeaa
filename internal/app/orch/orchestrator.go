// Package orch drives sessions through join, message and switchRoom and
// ties the registry, dispatcher and store together.
package orch

import (
	"context"
	"time"

	"github.com/dkeye/chatrelay/internal/app"
	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/dkeye/chatrelay/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const DefaultHistoryLimit = 50

type Limits struct {
	HistoryLimit  int
	MaxContentLen int
	StoreTimeout  time.Duration
	// RateLimit is messages per second per session; zero disables limiting.
	RateLimit float64
	RateBurst int
}

type Orchestrator struct {
	Registry   *app.Registry
	Dispatcher *app.Dispatcher
	Sequencer  *app.Sequencer
	Rooms      core.RoomDirectory
	Messages   core.MessageStore
	Events     core.EventPublisher
	Limits     Limits
}

// Connect binds a freshly authenticated connection to a new Unjoined session.
func (o *Orchestrator) Connect(user domain.UserID, conn core.SignalConnection, cancel context.CancelFunc) *Session {
	var limiter *rate.Limiter
	if o.Limits.RateLimit > 0 {
		burst := o.Limits.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(o.Limits.RateLimit), burst)
	}
	s := newSession(core.NewMemberSession(user, conn), limiter)
	o.Registry.Bind(s.member, cancel)
	log.Info().Str("module", "orch").Str("sid", string(s.ID())).Str("user", string(user)).Msg("session opened")
	return s
}

// Disconnect removes the session from whatever room it is in. It runs on
// every connection close and is idempotent.
func (o *Orchestrator) Disconnect(s *Session) {
	if !s.close() {
		return
	}
	room, ok := o.Registry.Unbind(s.ID())
	ev := log.Info().Str("module", "orch").Str("sid", string(s.ID())).Str("user", string(s.UserID()))
	if ok {
		ev = ev.Str("room", string(room))
	}
	ev.Msg("session closed")
}

// HandleFrame decodes and executes one client frame. Failures are reported to
// the sender only and never change session state.
func (o *Orchestrator) HandleFrame(ctx context.Context, s *Session, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "orch").Str("sid", string(s.ID())).Interface("panic", r).Msg("frame handler panic")
			_ = s.reply(protocol.Error(domain.MsgInternal))
		}
	}()

	in, err := protocol.Decode(data)
	if err != nil {
		o.fail(s, "", err)
		return
	}
	log.Debug().Str("module", "orch").Str("sid", string(s.ID())).Str("type", in.Kind()).Msg("frame")

	claimed := in.ClaimedUser()
	switch cmd := in.(type) {
	case protocol.Join:
		err = o.Join(ctx, s, cmd.ChatRoomID, claimed)
	case protocol.Post:
		err = o.Post(ctx, s, cmd.Content, claimed)
	case protocol.SwitchRoom:
		err = o.SwitchRoom(ctx, s, cmd.ChatRoomID, claimed)
	}
	if err != nil {
		o.fail(s, in.Kind(), err)
	}
}

func (o *Orchestrator) fail(s *Session, frameType string, err error) {
	kind := domain.KindOf(err)
	var ev *zerolog.Event
	switch kind {
	case domain.KindStore, domain.KindInternal:
		ev = log.Error()
	default:
		ev = log.Warn()
	}
	ev = ev.Err(err).Str("module", "orch").Str("sid", string(s.ID())).Str("kind", kind.String())
	if frameType != "" {
		ev = ev.Str("type", frameType)
	}
	ev.Msg("frame rejected")
	if err := s.reply(protocol.Error(domain.ClientMessage(err))); err != nil {
		log.Debug().Err(err).Str("module", "orch").Str("sid", string(s.ID())).Msg("error frame not delivered")
	}
}

func (o *Orchestrator) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Limits.StoreTimeout > 0 {
		return context.WithTimeout(ctx, o.Limits.StoreTimeout)
	}
	return context.WithCancel(ctx)
}

func (o *Orchestrator) historyLimit() int {
	if o.Limits.HistoryLimit > 0 {
		return o.Limits.HistoryLimit
	}
	return DefaultHistoryLimit
}
