package rooms

import "errors"

var (
	// ErrInvalidSchedule rejects a room whose scheduled start lies in the
	// past beyond the grace window.
	ErrInvalidSchedule = errors.New("scheduled start is in the past")
	// ErrForbidden rejects a host-only action attempted by another role.
	ErrForbidden = errors.New("operation requires the host role")
	// ErrNotActive rejects ending a room that was never started.
	ErrNotActive = errors.New("room is not active")
	// ErrRoomNotActive rejects relay traffic against an ended or cancelled
	// room. Clients tear down on it rather than retry.
	ErrRoomNotActive = errors.New("room is no longer active")
	// ErrRoomNotFound means no such room exists.
	ErrRoomNotFound = errors.New("room not found")
	// ErrStateConflict means a racing lifecycle transition won.
	ErrStateConflict = errors.New("conflicting room transition")
	// ErrRoomFull rejects a third connected peer.
	ErrRoomFull = errors.New("room is full")
)
