// Package handlers exposes the signaling relay and the lifecycle,
// admission, and recording operations over HTTP.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dunskii/consult-relay/internal/admission"
	"github.com/dunskii/consult-relay/internal/recordings"
	"github.com/dunskii/consult-relay/internal/rooms"
	"github.com/dunskii/consult-relay/internal/signals"
)

// API bundles the services the handlers drive.
type API struct {
	Rooms      *rooms.Manager
	Gate       *admission.Gate
	Signals    signals.Store
	Recordings *recordings.Coordinator
	Hub        *signals.Hub
	Log        *slog.Logger

	MaxSignalBytes    int
	MaxRecordingBytes int64
}

// writeError maps domain sentinels onto HTTP statuses with a stable code
// the client can branch on. Anything unrecognized is an infrastructure
// failure and surfaces as a generic transport error.
func (a *API) writeError(c *gin.Context, err error) {
	status, code := http.StatusBadGateway, "transport_error"
	switch {
	case errors.Is(err, rooms.ErrInvalidSchedule):
		status, code = http.StatusBadRequest, "invalid_schedule"
	case errors.Is(err, rooms.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, rooms.ErrRoomNotFound):
		status, code = http.StatusNotFound, "room_not_found"
	case errors.Is(err, rooms.ErrNotActive):
		status, code = http.StatusConflict, "not_active"
	case errors.Is(err, rooms.ErrRoomNotActive):
		status, code = http.StatusConflict, "room_not_active"
	case errors.Is(err, rooms.ErrStateConflict):
		status, code = http.StatusConflict, "state_conflict"
	case errors.Is(err, rooms.ErrRoomFull):
		status, code = http.StatusConflict, "room_full"
	case errors.Is(err, admission.ErrParticipantNotFound):
		status, code = http.StatusNotFound, "participant_not_found"
	case errors.Is(err, recordings.ErrQuotaExceeded):
		status, code = http.StatusInsufficientStorage, "quota_exceeded"
	case errors.Is(err, recordings.ErrRecordingNotFound):
		status, code = http.StatusNotFound, "recording_not_found"
	}

	if status == http.StatusBadGateway {
		a.Log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error(), "code": code})
}
