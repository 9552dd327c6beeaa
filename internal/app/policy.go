package app

import (
	"errors"
	"strings"

	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a recipient whose TrySend failed.
type Policy interface {
	OnBackPressure(room domain.RoomID, member core.MemberSession, err error) BackpressureAction
}

// SimplePolicy kicks slow members. Members whose connection is already
// closed are left alone; their own teardown deregisters them.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(_ domain.RoomID, _ core.MemberSession, err error) BackpressureAction {
	if errors.Is(err, core.ErrConnClosed) {
		return NoAction
	}
	return KickMember
}

// DropPolicy only drops the frame for the slow member.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.RoomID, core.MemberSession, error) BackpressureAction {
	return DropFrame
}

// PolicyByName maps the ws.backpressure config value to a Policy.
func PolicyByName(name string) Policy {
	switch strings.ToLower(name) {
	case "drop":
		return DropPolicy{}
	default:
		return SimplePolicy{}
	}
}
