package models

import "time"

// RoomStatus is the lifecycle state of a consultation room. Transitions are
// monotonic: scheduled -> active -> ended, or any non-terminal state -> cancelled.
type RoomStatus string

const (
	RoomStatusScheduled RoomStatus = "scheduled"
	RoomStatusActive    RoomStatus = "active"
	RoomStatusEnded     RoomStatus = "ended"
	RoomStatusCancelled RoomStatus = "cancelled"
)

// Terminal reports whether no further transition may leave this status.
func (s RoomStatus) Terminal() bool {
	return s == RoomStatusEnded || s == RoomStatusCancelled
}

// Room is the server-side record of one consultation's schedule and status.
type Room struct {
	ID                 string     `json:"room_id"`
	BookingRef         string     `json:"booking_ref"`
	Provider           string     `json:"provider"`
	Status             RoomStatus `json:"status"`
	ScheduledStart     time.Time  `json:"scheduled_start"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	EndedAt            *time.Time `json:"ended_at,omitempty"`
	DurationSeconds    int        `json:"duration_seconds"`
	WaitingRoomEnabled bool       `json:"waiting_room_enabled"`
	EndReason          string     `json:"end_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// PeerRole distinguishes the consulting provider from their client.
type PeerRole string

const (
	RoleHost  PeerRole = "host"
	RoleGuest PeerRole = "guest"
)

// Peer is an actively connected participant inside a room. The id is
// ephemeral and generated per session; it is not a durable identity.
type Peer struct {
	ID       string    `json:"peer_id"`
	Name     string    `json:"name"`
	Role     PeerRole  `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// MaxConnectedPeers caps a room at a two-party mesh. The relay contract
// already hands joiners a peer list, so lifting this later does not change
// the wire shape.
const MaxConnectedPeers = 2
