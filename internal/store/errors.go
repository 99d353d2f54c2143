package store

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrInvalidState       = errors.New("operation not valid in current room state")
	ErrPermissionDenied   = errors.New("only the host may do that")
	ErrRoomFull           = errors.New("room full")
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique room code")
)
