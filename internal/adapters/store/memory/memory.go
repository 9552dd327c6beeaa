// Package memory is a process-local store used for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/chatrelay/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]domain.Room
	messages map[domain.RoomID][]domain.Message
	nextID   int64
	now      func() time.Time
}

func New(rooms ...domain.Room) *Store {
	s := &Store{
		rooms:    make(map[domain.RoomID]domain.Room),
		messages: make(map[domain.RoomID][]domain.Message),
		now:      time.Now,
	}
	for _, r := range rooms {
		_ = s.EnsureRoom(context.Background(), r)
	}
	return s
}

// WithClock overrides the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

func (s *Store) EnsureRoom(_ context.Context, room domain.Room) error {
	if err := room.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; !ok {
		s.rooms[room.ID] = room
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, id domain.RoomID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[id]
	return ok, nil
}

func (s *Store) Append(ctx context.Context, room domain.RoomID, user domain.UserID, content string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room]; !ok {
		return domain.Message{}, domain.ErrRoomNotFound
	}
	s.nextID++
	m := domain.NewMessage(s.nextID, room, user, content, s.now())
	s.messages[room] = append(s.messages[room], m)
	return m, nil
}

func (s *Store) Recent(ctx context.Context, room domain.RoomID, limit int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[room]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]domain.Message, len(all))
	copy(out, all)
	return out, nil
}

func (s *Store) Close() error { return nil }
