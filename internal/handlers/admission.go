package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dunskii/consult-relay/internal/admission"
	"github.com/dunskii/consult-relay/internal/models"
)

// JoinRoom handles join_video_room: the participant-facing entry request
// that runs before any peer id exists.
func (a *API) JoinRoom(c *gin.Context) {
	var req models.JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error(), "code": "bad_request"})
		return
	}

	result, err := a.Gate.RequestEntry(c.Request.Context(), c.Param("roomID"), req)
	if err != nil {
		a.writeError(c, err)
		return
	}

	resp := models.JoinRoomResponse{Status: string(result.Decision)}
	switch result.Decision {
	case admission.DecisionAdmitted:
		resp.PeerID = result.Ticket.PeerID
	case admission.DecisionWaiting:
		resp.ParticipantID = result.Participant.ID
	}
	c.JSON(http.StatusOK, resp)
}

// AdmitParticipant promotes a waiting participant. Safe to repeat.
func (a *API) AdmitParticipant(c *gin.Context) {
	ticket, err := a.Gate.Admit(c.Request.Context(), c.Param("participantID"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "peer_id": ticket.PeerID})
}

// RejectParticipant removes a waiting participant and notifies it.
func (a *API) RejectParticipant(c *gin.Context) {
	if err := a.Gate.Reject(c.Request.Context(), c.Param("participantID")); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
