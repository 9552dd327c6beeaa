package core

import "github.com/dkeye/chatrelay/internal/domain"

type SessionID string

// MemberSession binds a verified identity and its transport endpoint.
// This is what the registry stores and the dispatcher fans out to.
type MemberSession interface {
	ID() SessionID
	UserID() domain.UserID
	Signal() SignalConnection
}
