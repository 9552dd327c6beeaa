package protocol

import (
	"encoding/json"

	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
)

type historyFrame struct {
	Type       string           `json:"type"`
	ChatRoomID domain.RoomID    `json:"chatRoomId"`
	Messages   []domain.Message `json:"messages"`
}

type messageFrame struct {
	Type       string         `json:"type"`
	ChatRoomID domain.RoomID  `json:"chatRoomId"`
	Message    domain.Message `json:"message"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func JoinSuccess(room domain.RoomID, history []domain.Message) (core.Frame, error) {
	return encodeHistory(TypeJoinSuccess, room, history)
}

func SwitchSuccess(room domain.RoomID, history []domain.Message) (core.Frame, error) {
	return encodeHistory(TypeSwitchSuccess, room, history)
}

func encodeHistory(typ string, room domain.RoomID, history []domain.Message) (core.Frame, error) {
	if history == nil {
		history = []domain.Message{}
	}
	return json.Marshal(historyFrame{Type: typ, ChatRoomID: room, Messages: history})
}

func Message(m domain.Message) (core.Frame, error) {
	return json.Marshal(messageFrame{Type: TypeMessage, ChatRoomID: m.ChatRoomID, Message: m})
}

func Error(text string) core.Frame {
	b, err := json.Marshal(errorFrame{Type: TypeError, Message: text})
	if err != nil {
		return core.Frame(`{"type":"error","message":"internal error"}`)
	}
	return b
}
