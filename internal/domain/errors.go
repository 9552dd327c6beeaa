package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures. Every kind except KindDelivery is reported to
// the originating client as an error frame.
type Kind uint8

const (
	KindInternal Kind = iota
	KindAuth
	KindProtocol
	KindState
	KindNotFound
	KindIdentityMismatch
	KindRateLimited
	KindDelivery
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindProtocol:
		return "protocol"
	case KindState:
		return "state"
	case KindNotFound:
		return "not_found"
	case KindIdentityMismatch:
		return "identity_mismatch"
	case KindRateLimited:
		return "rate_limited"
	case KindDelivery:
		return "delivery"
	case KindStore:
		return "store"
	default:
		return "internal"
	}
}

// Error carries a client-safe Msg and an optional internal cause.
// The cause is logged, never sent.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches kind sentinels such as ErrState regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrAuth             = &Error{Kind: KindAuth}
	ErrProtocol         = &Error{Kind: KindProtocol}
	ErrState            = &Error{Kind: KindState}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrIdentityMismatch = &Error{Kind: KindIdentityMismatch}
	ErrRateLimited      = &Error{Kind: KindRateLimited}
	ErrDelivery         = &Error{Kind: KindDelivery}
	ErrStore            = &Error{Kind: KindStore}
)

func E(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Client-facing texts.
const (
	MsgUnauthorized     = "unauthorized"
	MsgInvalidFormat    = "invalid message format"
	MsgUnsupportedType  = "unsupported message type"
	MsgMustJoin         = "must join a room first"
	MsgInvalidRoom      = "invalid room"
	MsgIdentityMismatch = "identity mismatch"
	MsgInvalidContent   = "invalid message content"
	MsgRateLimited      = "rate limit exceeded"
	MsgJoinFailed       = "failed to join room"
	MsgSwitchFailed     = "failed to switch room"
	MsgSendFailed       = "failed to send message"
	MsgInternal         = "internal error"
)

// ClientMessage returns the text safe to show the client for err.
func ClientMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Kind != KindInternal && de.Msg != "" {
		return de.Msg
	}
	return MsgInternal
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
