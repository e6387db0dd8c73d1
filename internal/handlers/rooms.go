package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dunskii/consult-relay/internal/models"
)

// CreateRoom records a room for a confirmed consultation booking.
func (a *API) CreateRoom(c *gin.Context) {
	var req models.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error(), "code": "bad_request"})
		return
	}

	room, err := a.Rooms.Create(c.Request.Context(), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

// ListRooms is the administrative listing, filterable by status and provider.
func (a *API) ListRooms(c *gin.Context) {
	result, err := a.Rooms.List(c.Request.Context(), c.Query("status"), c.Query("provider"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	if result == nil {
		result = []models.Room{}
	}
	c.JSON(http.StatusOK, result)
}

// StartRoom transitions a scheduled room to active.
func (a *API) StartRoom(c *gin.Context) {
	role := models.PeerRole(c.GetString("role"))
	if err := a.Rooms.Start(c.Request.Context(), c.Param("roomID"), role); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// EndRoom handles end_video_session.
func (a *API) EndRoom(c *gin.Context) {
	if err := a.Rooms.End(c.Request.Context(), c.Param("roomID")); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CancelRoom cancels a scheduled or active room.
func (a *API) CancelRoom(c *gin.Context) {
	if err := a.Rooms.Cancel(c.Request.Context(), c.Param("roomID")); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RoomStatus is the host's view of the room and its waiting area.
func (a *API) RoomStatus(c *gin.Context) {
	room, err := a.Rooms.Get(c.Request.Context(), c.Param("roomID"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.RoomStatusResponse{
		Room:        *room,
		WaitingRoom: a.Gate.ListWaiting(room.ID),
	})
}
