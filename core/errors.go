package core

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("room is full")
	ErrBadPassword   = errors.New("wrong room password")
	ErrAlreadyInRoom = errors.New("already in a room")
	ErrNotInRoom     = errors.New("not in a room")
	ErrNotPlayer     = errors.New("not an active player")
	ErrNotAuthorized = errors.New("only player a can restart the game")
	ErrGameNotOver   = errors.New("game is not over")
	ErrGameNotActive = errors.New("game is not running")
	ErrInvalidMove   = errors.New("move must be an axis-aligned unit vector")
	ErrReversal      = errors.New("move reverses the current heading")

	ErrUsernameTooShort  = errors.New("username is too short")
	ErrUsernameTooLong   = errors.New("username is too long")
	ErrUsernameTaken     = errors.New("username is already taken")
	ErrAddressBound      = errors.New("another user is already connected from this address")
	ErrAlreadyRegistered = errors.New("connection is already registered")
	ErrNotRegistered     = errors.New("register a username first")
	ErrUnknownEvent      = errors.New("unknown event")
)

// IdentityError attributes a failure to one participant.
type IdentityError struct {
	Identity string
	Err      error
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("identity %s: %v", e.Identity, e.Err)
}

func (e *IdentityError) Unwrap() error {
	return e.Err
}
