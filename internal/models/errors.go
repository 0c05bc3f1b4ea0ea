package models

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrPasscodeRequired = errors.New("passcode required")
	ErrPasscodeMissing  = errors.New("passcode required for group rooms")
	ErrForbidden        = errors.New("only the room owner can destroy this room")
	ErrInvalidMode      = errors.New("invalid room mode")
)

// Reason codes carried to the lobby on a rejected join.
const (
	ReasonRoomNotFound     = "room-not-found"
	ReasonRoomFull         = "room-full"
	ReasonPasscodeRequired = "passcode-required"
)

// Reason maps an admission error to its lobby code.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrRoomFull):
		return ReasonRoomFull
	case errors.Is(err, ErrPasscodeRequired):
		return ReasonPasscodeRequired
	default:
		return ReasonRoomNotFound
	}
}

var ErrNotMember = errors.New("not a member of this room")
