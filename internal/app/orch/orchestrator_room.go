package orch

import (
	"context"

	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/dkeye/chatrelay/internal/protocol"
	"github.com/rs/zerolog/log"
)

type historyEncoder func(domain.RoomID, []domain.Message) (core.Frame, error)

// Join places the session in room and replies joinSuccess with recent history.
// A session already in a room is moved.
func (o *Orchestrator) Join(ctx context.Context, s *Session, room domain.RoomID, claimed *domain.UserID) error {
	if s.State() == StateClosed {
		return domain.E(domain.KindState, domain.MsgInternal, nil)
	}
	if err := s.checkIdentity(claimed); err != nil {
		return err
	}
	return o.enterRoom(ctx, s, room, protocol.JoinSuccess, domain.MsgJoinFailed)
}

// SwitchRoom moves a joined session to room and replies switchSuccess.
func (o *Orchestrator) SwitchRoom(ctx context.Context, s *Session, room domain.RoomID, claimed *domain.UserID) error {
	if s.State() != StateJoined {
		return domain.E(domain.KindState, domain.MsgMustJoin, nil)
	}
	if err := s.checkIdentity(claimed); err != nil {
		return err
	}
	return o.enterRoom(ctx, s, room, protocol.SwitchSuccess, domain.MsgSwitchFailed)
}

// enterRoom registers the session under the target room's sequencer so that
// a concurrent message is either part of the history or delivered after the
// reply, never both and never neither.
func (o *Orchestrator) enterRoom(ctx context.Context, s *Session, raw domain.RoomID, encode historyEncoder, failMsg string) error {
	room, err := domain.ParseRoomID(string(raw))
	if err != nil {
		return domain.E(domain.KindNotFound, domain.MsgInvalidRoom, err)
	}

	sctx, cancel := o.storeCtx(ctx)
	defer cancel()

	exists, err := o.Rooms.Exists(sctx, room)
	if err != nil {
		return domain.E(domain.KindStore, failMsg, err)
	}
	if !exists {
		return domain.E(domain.KindNotFound, domain.MsgInvalidRoom, nil)
	}

	unlock := o.Sequencer.Lock(room)
	defer unlock()

	prev, hadPrev := o.Registry.Join(s.member, room)
	committed := false
	// Undo the move on any failure, panics included.
	defer func() {
		if committed {
			return
		}
		if hadPrev {
			o.Registry.Join(s.member, prev)
			return
		}
		o.Registry.Leave(s.ID())
	}()

	history, err := o.Messages.Recent(sctx, room, o.historyLimit())
	if err != nil {
		return domain.E(domain.KindStore, failMsg, err)
	}
	frame, err := encode(room, history)
	if err != nil {
		return domain.E(domain.KindInternal, failMsg, err)
	}
	s.enter(room)
	committed = true
	if err := s.reply(frame); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(s.ID())).Msg("history reply not delivered")
	}

	ev := log.Info().Str("module", "orch").Str("sid", string(s.ID())).Str("user", string(s.UserID())).Str("room", string(room)).Int("history", len(history))
	if hadPrev {
		ev = ev.Str("from_room", string(prev))
	}
	ev.Msg("entered room")
	return nil
}
