package orch

import (
	"context"

	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/dkeye/chatrelay/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Post persists content in the session's room and delivers the stored record
// to every member, the sender included.
func (o *Orchestrator) Post(ctx context.Context, s *Session, content string, claimed *domain.UserID) error {
	room, joined := s.Room()
	if !joined {
		return domain.E(domain.KindState, domain.MsgMustJoin, nil)
	}
	if err := s.checkIdentity(claimed); err != nil {
		return err
	}
	if err := domain.ValidateContent(content, o.Limits.MaxContentLen); err != nil {
		return domain.E(domain.KindProtocol, domain.MsgInvalidContent, err)
	}
	if !s.allow() {
		return domain.E(domain.KindRateLimited, domain.MsgRateLimited, nil)
	}

	sctx, cancel := o.storeCtx(ctx)
	defer cancel()

	msg, err := o.persistAndDeliver(sctx, room, s.UserID(), content)
	if err != nil {
		return err
	}

	if o.Events != nil {
		if err := o.Events.MessageCreated(sctx, msg); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("room", string(room)).Int64("message_id", msg.ID).Msg("publish message event")
		}
	}
	return nil
}

func (o *Orchestrator) persistAndDeliver(ctx context.Context, room domain.RoomID, user domain.UserID, content string) (domain.Message, error) {
	unlock := o.Sequencer.Lock(room)
	defer unlock()

	msg, err := o.Messages.Append(ctx, room, user, content)
	if err != nil {
		return domain.Message{}, domain.E(domain.KindStore, domain.MsgSendFailed, err)
	}
	frame, err := protocol.Message(msg)
	if err != nil {
		return domain.Message{}, domain.E(domain.KindInternal, domain.MsgSendFailed, err)
	}
	res := o.Dispatcher.Deliver(room, frame, "")
	log.Debug().Str("module", "orch").Str("room", string(room)).Int64("message_id", msg.ID).Int("sent_to", res.SendTo).Msg("message delivered")
	return msg, nil
}
