package game

import "errors"

var (
	ErrDuplicateName     = errors.New("duplicate name")
	ErrIllegalMove       = errors.New("illegal move")
	ErrDeckExhausted     = errors.New("deck exhausted")
	ErrUnknownConnection = errors.New("unknown room or connection")
	ErrBadPassword       = errors.New("bad password")
	ErrRoomFull          = errors.New("room full")
)
