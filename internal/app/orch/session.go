package orch

import (
	"sync"

	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"golang.org/x/time/rate"
)

type State int

const (
	StateUnjoined State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	default:
		return "closed"
	}
}

// Session is the per-connection protocol state. The identity is fixed at
// construction; the room is empty until the first successful join.
type Session struct {
	member  core.MemberSession
	limiter *rate.Limiter

	mu    sync.RWMutex
	state State
	room  domain.RoomID
}

func newSession(member core.MemberSession, limiter *rate.Limiter) *Session {
	return &Session{member: member, limiter: limiter}
}

func (s *Session) ID() core.SessionID    { return s.member.ID() }
func (s *Session) UserID() domain.UserID { return s.member.UserID() }

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Room returns the current room, if joined.
func (s *Session) Room() (domain.RoomID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room, s.state == StateJoined
}

func (s *Session) enter(room domain.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = StateJoined
	s.room = room
}

// close marks the session closed and reports whether it was open.
func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	s.room = ""
	return true
}

// checkIdentity rejects frames whose claimed userId differs from the bound one.
func (s *Session) checkIdentity(claimed *domain.UserID) error {
	if claimed == nil || *claimed == "" || *claimed == s.UserID() {
		return nil
	}
	return domain.E(domain.KindIdentityMismatch, domain.MsgIdentityMismatch, nil)
}

func (s *Session) allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

func (s *Session) reply(f core.Frame) error {
	return s.member.Signal().TrySend(f)
}
