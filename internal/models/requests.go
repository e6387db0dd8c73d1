package models

import (
	"encoding/json"
	"time"
)

// SignalRequest is the single multiplexed relay operation, distinguished by
// the Type field.
type SignalRequest struct {
	RoomID string          `json:"room_id" binding:"required"`
	PeerID string          `json:"peer_id" binding:"required"`
	Type   SignalType      `json:"type" binding:"required"`
	Target string          `json:"target,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// SignalResponse carries whichever of the optional fields the operation
// produces: Peers for join, Signals for poll.
type SignalResponse struct {
	Success bool     `json:"success"`
	Peers   []string `json:"peers,omitempty"`
	Signals []Signal `json:"signals,omitempty"`
}

// CreateRoomRequest creates a room for a confirmed consultation booking.
type CreateRoomRequest struct {
	BookingRef     string    `json:"booking_ref" binding:"required"`
	Provider       string    `json:"provider" binding:"required"`
	ScheduledStart time.Time `json:"scheduled_start" binding:"required"`
	WaitingRoom    *bool     `json:"waiting_room,omitempty"`
}

// JoinRoomRequest asks for entry to a room, before any peer id exists.
type JoinRoomRequest struct {
	Name   string `json:"name" binding:"required"`
	Email  string `json:"email,omitempty"`
	IsHost bool   `json:"is_host"`
}

// JoinRoomResponse reports the admission decision. PeerID is set when
// admitted; ParticipantID when parked in the waiting room.
type JoinRoomResponse struct {
	Status        string `json:"status"`
	PeerID        string `json:"peer_id,omitempty"`
	ParticipantID string `json:"participant_id,omitempty"`
}

// RoomStatusResponse is the host's view of who is waiting for entry.
type RoomStatusResponse struct {
	Room        Room                 `json:"room"`
	WaitingRoom []WaitingParticipant `json:"waiting_room"`
}

// RecordingListResponse lists stored recordings with aggregate usage.
type RecordingListResponse struct {
	Recordings       []Recording `json:"recordings"`
	StorageUsed      int64       `json:"storage_used"`
	StorageFormatted string      `json:"storage_formatted"`
}
