package app

import (
	"context"
	"sort"
	"sync"

	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Room    domain.RoomID
	Session core.MemberSession
	Cancel  context.CancelFunc
}

// Registry is the shared membership table. A session is in at most one room;
// every mutation runs under a single lock so a snapshot observes a move
// either entirely before or entirely after it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	rooms    map[domain.RoomID]map[core.SessionID]core.MemberSession
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		rooms:    make(map[domain.RoomID]map[core.SessionID]core.MemberSession),
	}
}

// Bind registers a live connection that has not joined any room yet.
func (r *Registry) Bind(sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sess.ID()]; ok {
		e.Session = sess
		e.Cancel = cancel
		return
	}
	r.sessions[sess.ID()] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Debug().Str("module", "app.registry").Str("sid", string(sess.ID())).Str("user", string(sess.UserID())).Msg("bound session")
}

// Join moves sess into room, removing it from its previous room in the same
// critical section. It returns the previous room, if any.
func (r *Registry) Join(sess core.MemberSession, room domain.RoomID) (domain.RoomID, bool) {
	sid := sess.ID()
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sid]
	if !ok {
		e = &sessionEntry{Session: sess}
		r.sessions[sid] = e
	}
	prev := e.Room
	if prev != "" {
		r.removeFromRoomLocked(prev, sid)
	}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[core.SessionID]core.MemberSession)
		r.rooms[room] = members
	}
	members[sid] = sess
	e.Room = room
	return prev, prev != ""
}

// Leave removes the session from its room but keeps it bound.
func (r *Registry) Leave(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok || e.Room == "" {
		return "", false
	}
	prev := e.Room
	r.removeFromRoomLocked(prev, sid)
	e.Room = ""
	return prev, true
}

// Unbind forgets the session entirely. Safe to call more than once.
func (r *Registry) Unbind(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return "", false
	}
	delete(r.sessions, sid)
	if e.Room == "" {
		return "", false
	}
	r.removeFromRoomLocked(e.Room, sid)
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(e.Room)).Msg("unbind session")
	return e.Room, true
}

func (r *Registry) removeFromRoomLocked(room domain.RoomID, sid core.SessionID) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, sid)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.Room == "" {
		return "", false
	}
	return e.Room, true
}

// MembersOf returns a snapshot of the room's members at call time.
func (r *Registry) MembersOf(room domain.RoomID) []core.MemberSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[room]
	out := make([]core.MemberSession, 0, len(members))
	for _, m := range members {
		out = append(out, m)
	}
	return out
}

func (r *Registry) Rooms() []core.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(r.rooms))
	for id, members := range r.rooms {
		out = append(out, core.RoomInfo{ID: id, MemberCount: len(members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cancel stops the session's connection context, which tears down its pumps.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
