package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// HandleSignalStream is the push-capable alternative to polling: the
// connection is woken whenever the peer's queue grows and drains it through
// the same store, so delivery stays at most once and in order. A client uses
// either this stream or polling, not both.
func (a *API) HandleSignalStream(c *gin.Context) {
	roomID := c.Param("roomID")
	peerID := c.Param("peerID")

	room, err := a.Rooms.ActiveRoom(c.Request.Context(), roomID)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if !a.Rooms.Registry().HasPeer(room.ID, peerID) {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false, "error": "peer is not connected to this room", "code": "forbidden",
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.Log.Error("failed to upgrade connection", "error", err)
		return
	}

	notify, cancel := a.Hub.Subscribe(roomID, peerID)
	defer cancel()

	done := make(chan struct{})
	go a.streamReadPump(conn, done)
	a.streamWritePump(conn, roomID, peerID, notify, done)
}

// streamReadPump discards inbound frames; the stream is server-to-client
// only. It exists to notice the client going away.
func (a *API) streamReadPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (a *API) streamWritePump(conn *websocket.Conn, roomID, peerID string, notify <-chan struct{}, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	// Hand over anything already pending before the first notification.
	if !a.flushSignals(conn, roomID, peerID) {
		return
	}

	for {
		select {
		case <-notify:
			if !a.flushSignals(conn, roomID, peerID) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// flushSignals drains the peer's queue and writes each signal as one frame.
// Reports whether the connection is still usable. The stream outlives the
// upgrade request, so the drain cannot use the request context.
func (a *API) flushSignals(conn *websocket.Conn, roomID, peerID string) bool {
	pending, err := a.Signals.Drain(context.Background(), roomID, peerID)
	if err != nil {
		a.Log.Error("stream drain failed", "room_id", roomID, "peer_id", peerID, "error", err)
		return false
	}
	for _, sig := range pending {
		data, marshalErr := json.Marshal(sig)
		if marshalErr != nil {
			a.Log.Error("failed to marshal signal", "error", marshalErr)
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return false
		}
	}
	return true
}
