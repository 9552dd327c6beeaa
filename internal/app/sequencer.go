package app

import (
	"sync"

	"github.com/dkeye/chatrelay/internal/domain"
)

type roomLock struct {
	mu   sync.Mutex
	refs int
}

// Sequencer hands out one mutex per room. Holding it across persist and
// enqueue keeps every member's delivery order equal to persistence order.
// Locks are created on demand and dropped when nobody holds or waits on them.
type Sequencer struct {
	mu    sync.Mutex
	rooms map[domain.RoomID]*roomLock
}

func NewSequencer() *Sequencer {
	return &Sequencer{rooms: make(map[domain.RoomID]*roomLock)}
}

// Lock blocks until the room is free and returns its unlock func.
func (s *Sequencer) Lock(room domain.RoomID) (unlock func()) {
	s.mu.Lock()
	l, ok := s.rooms[room]
	if !ok {
		l = &roomLock{}
		s.rooms[room] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			s.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(s.rooms, room)
			}
			s.mu.Unlock()
		})
	}
}

// Active reports how many rooms currently have a lock in use.
func (s *Sequencer) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
