package core

import (
	"context"

	"github.com/dkeye/chatrelay/internal/domain"
)

// IdentityVerifier turns a handshake credential into a user id.
// Any failure means the handshake is refused.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (domain.UserID, error)
}

type RoomDirectory interface {
	Exists(ctx context.Context, id domain.RoomID) (bool, error)
}

// MessageStore persists messages and serves the recent history of a room.
// Recent returns at most limit messages in ascending (CreatedAt, ID) order.
type MessageStore interface {
	Append(ctx context.Context, room domain.RoomID, user domain.UserID, content string) (domain.Message, error)
	Recent(ctx context.Context, room domain.RoomID, limit int) ([]domain.Message, error)
}

// RoomSeeder creates a room if it does not exist yet.
type RoomSeeder interface {
	EnsureRoom(ctx context.Context, room domain.Room) error
}

// Store is what every storage backend provides.
type Store interface {
	RoomDirectory
	MessageStore
	RoomSeeder
	Close() error
}

// EventPublisher receives every persisted message after fan-out.
type EventPublisher interface {
	MessageCreated(ctx context.Context, m domain.Message) error
	Close() error
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}
