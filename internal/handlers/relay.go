package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dunskii/consult-relay/internal/models"
	"github.com/dunskii/consult-relay/internal/rooms"
)

// HandleSignal is the relay's single multiplexed operation, distinguished by
// the request's type field. Every step is replay-tolerant: polling twice
// before the peer produced anything yields an empty result, not an error.
func (a *API) HandleSignal(c *gin.Context) {
	var req models.SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error(), "code": "bad_request"})
		return
	}

	// Any relay traffic counts as activity for the idle sweep.
	a.Rooms.Registry().Touch(req.RoomID)

	switch req.Type {
	case models.SignalTypeJoin:
		a.relayJoin(c, req)
	case models.SignalTypeOffer, models.SignalTypeAnswer, models.SignalTypeCandidate:
		a.relayForward(c, req)
	case models.SignalTypePoll:
		a.relayPoll(c, req)
	case models.SignalTypeLeave:
		a.relayLeave(c, req)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false, "error": "unknown signal type", "code": "bad_request",
		})
	}
}

// relayJoin registers the caller against the room and returns the peers
// already connected, so the joiner can initiate an offer to each.
func (a *API) relayJoin(c *gin.Context, req models.SignalRequest) {
	ctx := c.Request.Context()

	room, err := a.Rooms.ActiveRoom(ctx, req.RoomID)
	if err != nil {
		a.writeError(c, err)
		return
	}

	registry := a.Rooms.Registry()
	if registry.HasPeer(room.ID, req.PeerID) {
		// Rejoin after a client restart; the peer set is unchanged.
		c.JSON(http.StatusOK, models.SignalResponse{
			Success: true,
			Peers:   peerIDsExcept(registry.Peers(room.ID), req.PeerID),
		})
		return
	}

	ticket, ok := a.Gate.TakeTicket(room.ID, req.PeerID)
	if !ok {
		a.writeError(c, rooms.ErrForbidden)
		return
	}

	existing := peerIDsExcept(registry.Peers(room.ID), req.PeerID)
	peer := models.Peer{
		ID:       req.PeerID,
		Name:     ticket.Name,
		Role:     ticket.Role,
		JoinedAt: time.Now().UTC(),
	}
	if err := registry.AddPeer(room.ID, peer); err != nil {
		a.writeError(c, err)
		return
	}

	a.Log.Info("peer joined",
		"room_id", room.ID, "peer_id", req.PeerID, "role", string(peer.Role))
	c.JSON(http.StatusOK, models.SignalResponse{Success: true, Peers: existing})
}

// relayForward stores an offer, answer, or ICE candidate for the target
// peer's next poll. Payloads are shape-checked but otherwise opaque.
func (a *API) relayForward(c *gin.Context, req models.SignalRequest) {
	ctx := c.Request.Context()

	room, err := a.Rooms.ActiveRoom(ctx, req.RoomID)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if req.Target == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false, "error": "target is required", "code": "bad_request",
		})
		return
	}

	registry := a.Rooms.Registry()
	if !registry.HasPeer(room.ID, req.PeerID) {
		a.writeError(c, rooms.ErrForbidden)
		return
	}
	// Waiting participants must never receive negotiation traffic, so the
	// target has to be a connected peer.
	if !registry.HasPeer(room.ID, req.Target) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false, "error": "target peer not connected", "code": "peer_not_found",
		})
		return
	}

	if err := models.ValidateSignalData(req.Type, req.Data, a.MaxSignalBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false, "error": err.Error(), "code": "bad_signal",
		})
		return
	}

	sig := models.Signal{
		From:   req.PeerID,
		Target: req.Target,
		Type:   req.Type,
		Data:   req.Data,
	}
	if err := a.Signals.Append(ctx, room.ID, sig); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SignalResponse{Success: true})
}

// relayPoll drains the caller's queue in creation order. Once a room has
// ended, the final drain still hands over whatever was pending (the leave
// signal in particular); after that the room reports not active.
func (a *API) relayPoll(c *gin.Context, req models.SignalRequest) {
	ctx := c.Request.Context()

	room, err := a.Rooms.Get(ctx, req.RoomID)
	if err != nil {
		a.writeError(c, err)
		return
	}

	switch room.Status {
	case models.RoomStatusActive:
		pending, drainErr := a.Signals.Drain(ctx, room.ID, req.PeerID)
		if drainErr != nil {
			a.writeError(c, drainErr)
			return
		}
		c.JSON(http.StatusOK, models.SignalResponse{Success: true, Signals: pending})
	case models.RoomStatusEnded, models.RoomStatusCancelled:
		pending, drainErr := a.Signals.Drain(ctx, room.ID, req.PeerID)
		if drainErr != nil {
			a.writeError(c, drainErr)
			return
		}
		if len(pending) == 0 {
			a.writeError(c, rooms.ErrRoomNotActive)
			return
		}
		c.JSON(http.StatusOK, models.SignalResponse{Success: true, Signals: pending})
	default:
		a.writeError(c, rooms.ErrRoomNotActive)
	}
}

// relayLeave deregisters the caller and wakes the remaining peers so they
// tear down immediately instead of waiting for connection-level failure
// detection. Leaving twice is harmless.
func (a *API) relayLeave(c *gin.Context, req models.SignalRequest) {
	ctx := c.Request.Context()
	registry := a.Rooms.Registry()

	if registry.RemovePeer(req.RoomID, req.PeerID) {
		for _, peer := range registry.Peers(req.RoomID) {
			sig := models.Signal{
				From:   req.PeerID,
				Target: peer.ID,
				Type:   models.SignalTypePeerLeft,
			}
			if err := a.Signals.Append(ctx, req.RoomID, sig); err != nil {
				a.Log.Error("failed to enqueue peer-left",
					"room_id", req.RoomID, "peer_id", peer.ID, "error", err)
			}
		}
		a.Log.Info("peer left", "room_id", req.RoomID, "peer_id", req.PeerID)
	}
	c.JSON(http.StatusOK, models.SignalResponse{Success: true})
}

func peerIDsExcept(peers []models.Peer, exclude string) []string {
	ids := make([]string, 0, len(peers))
	for _, peer := range peers {
		if peer.ID != exclude {
			ids = append(ids, peer.ID)
		}
	}
	return ids
}
