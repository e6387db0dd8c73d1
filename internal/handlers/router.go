package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/dunskii/consult-relay/internal/middleware"
)

// RouterConfig carries what route wiring needs from the service config.
type RouterConfig struct {
	JWTSecret      string
	AllowedOrigins []string
}

// NewRouter wires every operation group onto a gin engine. Host-level
// operations sit behind JWT auth; the relay and admission request are
// participant-facing.
func NewRouter(api *API, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(OriginFilter(cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	auth := middleware.JWTAuth(cfg.JWTSecret)
	host := middleware.RequireHost()

	apiGroup := router.Group("/api")
	{
		// Signaling relay (participant-facing, single multiplexed operation)
		apiGroup.POST("/signal", api.HandleSignal)

		// Room lifecycle
		apiGroup.POST("/rooms", auth, host, api.CreateRoom)
		apiGroup.GET("/rooms", auth, host, api.ListRooms)
		apiGroup.POST("/rooms/:roomID/start", auth, host, api.StartRoom)
		apiGroup.POST("/rooms/:roomID/end", auth, host, api.EndRoom)
		apiGroup.POST("/rooms/:roomID/cancel", auth, host, api.CancelRoom)
		apiGroup.GET("/rooms/:roomID/status", auth, host, api.RoomStatus)

		// Admission
		apiGroup.POST("/rooms/:roomID/join", api.JoinRoom)
		apiGroup.POST("/participants/:participantID/admit", auth, host, api.AdmitParticipant)
		apiGroup.POST("/participants/:participantID/reject", auth, host, api.RejectParticipant)

		// Recordings
		apiGroup.POST("/rooms/:roomID/recordings", api.SaveRecording)
		apiGroup.GET("/recordings", auth, host, api.ListRecordings)
		apiGroup.GET("/recordings/:recordingID/download", auth, host, api.DownloadRecording)
		apiGroup.DELETE("/recordings/:recordingID", auth, host, api.DeleteRecording)
	}

	// Push-capable signal stream
	wsGroup := router.Group("/ws")
	{
		wsGroup.GET("/rooms/:roomID/peers/:peerID", api.HandleSignalStream)
	}

	return router
}
