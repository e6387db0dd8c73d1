package models

import "time"

// WaitingParticipant is a guest parked in a room's waiting area until the
// host admits or rejects them. They hold no peer id yet and never learn the
// room's connected peers before admission.
type WaitingParticipant struct {
	ID          string    `json:"participant_id"`
	RoomID      string    `json:"room_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}
