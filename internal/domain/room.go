package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	MaxRoomIDLen   = 64
	MaxRoomNameLen = 64
)

var (
	ErrRoomIDEmpty   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
	ErrRoomIDType    = errors.New("room id must be a string or an integer")
	ErrRoomNotFound  = errors.New("room not found")
)

type (
	RoomName string
	RoomID   string
)

type Room struct {
	ID   RoomID   `json:"id" yaml:"id"`
	Name RoomName `json:"name" yaml:"name"`
}

// Validate checks the room id and defaults the name to the id.
func (r *Room) Validate() error {
	id, err := ParseRoomID(string(r.ID))
	if err != nil {
		return err
	}
	r.ID = id
	if r.Name == "" {
		r.Name = RoomName(id)
	}
	if utf8.RuneCountInString(string(r.Name)) > MaxRoomNameLen {
		r.Name = RoomName([]rune(string(r.Name))[:MaxRoomNameLen])
	}
	return nil
}

func ParseRoomID(raw string) (RoomID, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) == 0 {
		return "", ErrRoomIDEmpty
	}
	if len(raw) > MaxRoomIDLen {
		return "", ErrRoomIDTooLong
	}
	return RoomID(raw), nil
}

// UnmarshalJSON accepts both "general" and 42. Clients of the first release
// addressed rooms by integer primary key.
func (id *RoomID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RoomID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return ErrRoomIDType
	}
	*id = RoomID(strconv.FormatInt(n, 10))
	return nil
}

func (id RoomID) String() string { return string(id) }
