package models

import "time"

// Recording is a stored capture artifact tied to one room.
type Recording struct {
	ID              string    `json:"recording_id"`
	RoomID          string    `json:"room_id"`
	BookingRef      string    `json:"booking_ref"`
	SizeBytes       int64     `json:"size_bytes"`
	DurationSeconds int       `json:"duration_seconds"`
	StoragePath     string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Expired reports whether the retention window has passed; an expired
// recording is no longer guaranteed retrievable.
func (r Recording) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
