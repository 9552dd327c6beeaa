// Package redis keeps room history in Redis Streams, one stream per room.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/dkeye/chatrelay/internal/domain"
)

const (
	roomsKey     = "chat:rooms"
	roomNamesKey = "chat:room:names"
	seqKey       = "chat:messages:seq"
)

func streamKey(room domain.RoomID) string {
	return fmt.Sprintf("chat:room:%s:messages", room)
}

type Config struct {
	Addr     string
	Password string
	DB       int
	// MaxLen caps each room stream (approximate trim). Zero keeps everything.
	MaxLen int64
}

type Store struct {
	rdb    *redis.Client
	maxLen int64
	now    func() time.Time
}

func Open(ctx context.Context, c Config) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "redis: ping %s", c.Addr)
	}
	return New(rdb, c.MaxLen), nil
}

// New wraps an existing client.
func New(rdb *redis.Client, maxLen int64) *Store {
	return &Store{rdb: rdb, maxLen: maxLen, now: time.Now}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) EnsureRoom(ctx context.Context, room domain.Room) error {
	if err := room.Validate(); err != nil {
		return errors.Wrap(err, "redis: ensure room")
	}
	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, roomsKey, string(room.ID))
	pipe.HSetNX(ctx, roomNamesKey, string(room.ID), string(room.Name))
	_, err := pipe.Exec(ctx)
	return errors.Wrapf(err, "redis: ensure room %q", room.ID)
}

func (s *Store) Exists(ctx context.Context, id domain.RoomID) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, roomsKey, string(id)).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis: room exists")
	}
	return ok, nil
}

func (s *Store) Append(ctx context.Context, room domain.RoomID, user domain.UserID, content string) (domain.Message, error) {
	ok, err := s.Exists(ctx, room)
	if err != nil {
		return domain.Message{}, err
	}
	if !ok {
		return domain.Message{}, errors.Wrapf(domain.ErrRoomNotFound, "redis: append to %q", room)
	}
	id, err := s.rdb.Incr(ctx, seqKey).Result()
	if err != nil {
		return domain.Message{}, errors.Wrap(err, "redis: next message id")
	}
	m := domain.NewMessage(id, room, user, content, s.now())
	args := &redis.XAddArgs{
		Stream: streamKey(room),
		Values: map[string]any{
			"id":         strconv.FormatInt(m.ID, 10),
			"content":    m.Content,
			"sent_by_id": string(user),
			"created_at": m.CreatedAt.Format(time.RFC3339Nano),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.rdb.XAdd(ctx, args).Err(); err != nil {
		return domain.Message{}, errors.Wrap(err, "redis: xadd")
	}
	return m, nil
}

func (s *Store) Recent(ctx context.Context, room domain.RoomID, limit int) ([]domain.Message, error) {
	var (
		entries []redis.XMessage
		err     error
	)
	if limit > 0 {
		entries, err = s.rdb.XRevRangeN(ctx, streamKey(room), "+", "-", int64(limit)).Result()
	} else {
		entries, err = s.rdb.XRevRange(ctx, streamKey(room), "+", "-").Result()
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Wrap(err, "redis: xrevrange")
	}

	messages := make([]domain.Message, len(entries))
	for i, e := range entries {
		m, err := decodeEntry(room, e)
		if err != nil {
			return nil, err
		}
		messages[len(entries)-1-i] = m
	}
	return messages, nil
}

func decodeEntry(room domain.RoomID, e redis.XMessage) (domain.Message, error) {
	str := func(k string) string {
		v, _ := e.Values[k].(string)
		return v
	}
	id, err := strconv.ParseInt(str("id"), 10, 64)
	if err != nil {
		return domain.Message{}, errors.Wrapf(err, "redis: entry %s id", e.ID)
	}
	at, err := time.Parse(time.RFC3339Nano, str("created_at"))
	if err != nil {
		return domain.Message{}, errors.Wrapf(err, "redis: entry %s created_at", e.ID)
	}
	return domain.NewMessage(id, room, domain.UserID(str("sent_by_id")), str("content"), at), nil
}
