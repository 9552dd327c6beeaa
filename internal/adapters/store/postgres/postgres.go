// Package postgres stores rooms and messages in PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/dkeye/chatrelay/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_rooms (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
	id           BIGSERIAL PRIMARY KEY,
	content      TEXT NOT NULL,
	sent_by_id   TEXT,
	chat_room_id TEXT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_room_time ON messages (chat_room_id, created_at, id);
`

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres: ping")
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres: migrate")
	}
	return &Store{pool: pool, now: time.Now}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) EnsureRoom(ctx context.Context, room domain.Room) error {
	if err := room.Validate(); err != nil {
		return errors.Wrap(err, "postgres: ensure room")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_rooms (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		string(room.ID), string(room.Name))
	return errors.Wrapf(err, "postgres: ensure room %q", room.ID)
}

func (s *Store) Exists(ctx context.Context, id domain.RoomID) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chat_rooms WHERE id = $1)`, string(id)).Scan(&ok)
	if err != nil {
		return false, errors.Wrap(err, "postgres: room exists")
	}
	return ok, nil
}

func (s *Store) Append(ctx context.Context, room domain.RoomID, user domain.UserID, content string) (domain.Message, error) {
	var sender *string
	if user != "" {
		u := string(user)
		sender = &u
	}
	// Postgres keeps microseconds.
	at := s.now().UTC().Truncate(time.Microsecond)
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (content, sent_by_id, chat_room_id, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		content, sender, string(room), at).Scan(&id)
	if err != nil {
		return domain.Message{}, errors.Wrap(err, "postgres: create message")
	}
	return domain.NewMessage(id, room, user, content, at), nil
}

func (s *Store) Recent(ctx context.Context, room domain.RoomID, limit int) ([]domain.Message, error) {
	var (
		rows pgx.Rows
		err  error
	)
	const cols = `SELECT id, content, sent_by_id, chat_room_id, created_at FROM messages WHERE chat_room_id = $1 ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		rows, err = s.pool.Query(ctx, cols+` LIMIT $2`, string(room), limit)
	} else {
		rows, err = s.pool.Query(ctx, cols, string(room))
	}
	if err != nil {
		return nil, errors.Wrap(err, "postgres: list messages")
	}
	defer rows.Close()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		var (
			m      domain.Message
			sender *string
			roomID string
		)
		if err := rows.Scan(&m.ID, &m.Content, &sender, &roomID, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "postgres: scan message")
		}
		m.ChatRoomID = domain.RoomID(roomID)
		m.CreatedAt = m.CreatedAt.UTC()
		if sender != nil {
			u := domain.UserID(*sender)
			m.SentByID = &u
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "postgres: iterate messages")
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
