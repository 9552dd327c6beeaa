package core

import (
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/google/uuid"
)

// memberSession implements MemberSession by pairing identity + transport.
type memberSession struct {
	id     SessionID
	user   domain.UserID
	signal SignalConnection
}

func NewMemberSession(user domain.UserID, conn SignalConnection) MemberSession {
	return &memberSession{id: NewSessionID(), user: user, signal: conn}
}

func NewSessionID() SessionID { return SessionID(uuid.NewString()) }

func (m *memberSession) ID() SessionID            { return m.id }
func (m *memberSession) UserID() domain.UserID    { return m.user }
func (m *memberSession) Signal() SignalConnection { return m.signal }
