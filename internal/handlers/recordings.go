package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// SaveRecording handles save_video_recording: the capture blob is the
// request body, duration comes from a query parameter.
func (a *API) SaveRecording(c *gin.Context) {
	durationSeconds, _ := strconv.Atoi(c.Query("duration_seconds"))

	reader := http.MaxBytesReader(c.Writer, c.Request.Body, a.MaxRecordingBytes)
	blob, err := io.ReadAll(reader)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"success": false, "error": "recording too large", "code": "too_large",
		})
		return
	}

	rec, err := a.Recordings.Save(c.Request.Context(), c.Param("roomID"), blob, durationSeconds)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"recording_id": rec.ID,
		"expires_at":   rec.ExpiresAt,
	})
}

// ListRecordings handles get_video_recordings.
func (a *API) ListRecordings(c *gin.Context) {
	result, err := a.Recordings.List(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DownloadRecording streams an unexpired recording.
func (a *API) DownloadRecording(c *gin.Context) {
	rec, file, err := a.Recordings.Open(c.Request.Context(), c.Param("recordingID"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	defer file.Close()

	c.DataFromReader(http.StatusOK, rec.SizeBytes, "video/webm", file, map[string]string{
		"Content-Disposition": `attachment; filename="` + rec.ID + `.webm"`,
	})
}

// DeleteRecording handles delete_video_recording. Irreversible.
func (a *API) DeleteRecording(c *gin.Context) {
	if err := a.Recordings.Delete(c.Request.Context(), c.Param("recordingID")); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
