// Package protocol decodes client frames into typed commands and encodes
// server frames. Nothing past Decode ever sees raw JSON.
package protocol

import (
	"encoding/json"

	"github.com/dkeye/chatrelay/internal/domain"
)

const (
	TypeJoin          = "join"
	TypeMessage       = "message"
	TypeSwitchRoom    = "switchRoom"
	TypeJoinSuccess   = "joinSuccess"
	TypeSwitchSuccess = "switchSuccess"
	TypeError         = "error"
)

// Inbound is one of Join, Post or SwitchRoom.
type Inbound interface {
	Kind() string
	// ClaimedUser is the optional userId the client put in the frame.
	ClaimedUser() *domain.UserID
}

type Join struct {
	ChatRoomID domain.RoomID
	UserID     *domain.UserID
}

type Post struct {
	Content string
	UserID  *domain.UserID
}

type SwitchRoom struct {
	ChatRoomID domain.RoomID
	UserID     *domain.UserID
}

func (Join) Kind() string                        { return TypeJoin }
func (j Join) ClaimedUser() *domain.UserID       { return j.UserID }
func (Post) Kind() string                        { return TypeMessage }
func (p Post) ClaimedUser() *domain.UserID       { return p.UserID }
func (SwitchRoom) Kind() string                  { return TypeSwitchRoom }
func (s SwitchRoom) ClaimedUser() *domain.UserID { return s.UserID }

type envelope struct {
	Type       string         `json:"type"`
	UserID     *string        `json:"userId"`
	ChatRoomID *domain.RoomID `json:"chatRoomId"`
	Content    *string        `json:"content"`
}

// Decode parses one client frame. Malformed JSON or mistyped fields yield a
// protocol error "invalid message format"; an unknown type yields
// "unsupported message type".
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, domain.E(domain.KindProtocol, domain.MsgInvalidFormat, err)
	}

	var claimed *domain.UserID
	if env.UserID != nil {
		u := domain.UserID(*env.UserID)
		claimed = &u
	}
	var room domain.RoomID
	if env.ChatRoomID != nil {
		room = *env.ChatRoomID
	}

	switch env.Type {
	case TypeJoin:
		return Join{ChatRoomID: room, UserID: claimed}, nil
	case TypeMessage:
		var content string
		if env.Content != nil {
			content = *env.Content
		}
		return Post{Content: content, UserID: claimed}, nil
	case TypeSwitchRoom:
		return SwitchRoom{ChatRoomID: room, UserID: claimed}, nil
	default:
		return nil, domain.E(domain.KindProtocol, domain.MsgUnsupportedType, nil)
	}
}
