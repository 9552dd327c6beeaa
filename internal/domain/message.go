package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const DefaultMaxContentLen = 2000

var (
	ErrContentEmpty   = errors.New("message content empty")
	ErrContentTooLong = errors.New("message content too long")
)

// Message is a persisted chat line. ID and CreatedAt are assigned by the store.
type Message struct {
	ID         int64     `json:"id"`
	Content    string    `json:"content"`
	SentByID   *UserID   `json:"sentById"`
	ChatRoomID RoomID    `json:"chatRoomId"`
	CreatedAt  time.Time `json:"createdAt"`
}

func NewMessage(id int64, room RoomID, user UserID, content string, at time.Time) Message {
	m := Message{ID: id, Content: content, ChatRoomID: room, CreatedAt: at.UTC()}
	if user != "" {
		u := user
		m.SentByID = &u
	}
	return m
}

// ValidateContent rejects blank content and content longer than maxLen runes.
// maxLen <= 0 falls back to DefaultMaxContentLen.
func ValidateContent(content string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = DefaultMaxContentLen
	}
	if strings.TrimSpace(content) == "" {
		return ErrContentEmpty
	}
	if utf8.RuneCountInString(content) > maxLen {
		return ErrContentTooLong
	}
	return nil
}

// Before reports whether m sorts before o in history order.
func (m Message) Before(o Message) bool {
	if m.CreatedAt.Equal(o.CreatedAt) {
		return m.ID < o.ID
	}
	return m.CreatedAt.Before(o.CreatedAt)
}
