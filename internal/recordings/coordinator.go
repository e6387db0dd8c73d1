// Package recordings accepts uploaded capture segments, tracks storage
// usage against the configured quota, and sweeps recordings past their
// retention window.
package recordings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/dunskii/consult-relay/internal/models"
	"github.com/dunskii/consult-relay/internal/rooms"
	"github.com/dunskii/consult-relay/internal/store"
)

var (
	// ErrQuotaExceeded rejects a finalize that would push aggregate storage
	// over the cap. The caller keeps its capture and retries after an
	// operator frees space.
	ErrQuotaExceeded = errors.New("recording storage quota exceeded")
	// ErrRecordingNotFound means no such recording, or it expired.
	ErrRecordingNotFound = errors.New("recording not found")
	// ErrUploadNotFound means the upload handle is unknown or already
	// finalized.
	ErrUploadNotFound = errors.New("upload not found")
)

// Config carries the recording policy knobs.
type Config struct {
	// Retention is how long a finalized recording stays retrievable.
	Retention time.Duration
	// LateUploadGrace allows uploads to begin this long after a room ended.
	LateUploadGrace time.Duration
	// QuotaBytes caps aggregate stored recording size.
	QuotaBytes int64
}

// Upload is an open capture handle. Bytes land in a part file until
// Finalize moves them into place.
type Upload struct {
	ID         string
	RoomID     string
	BookingRef string

	path string
	file *os.File
	size int64
}

// Coordinator supervises the recording lifecycle for all rooms.
type Coordinator struct {
	store *store.Store
	dir   string
	log   *slog.Logger
	cfg   Config

	mu      sync.Mutex
	uploads map[string]*Upload
}

// NewCoordinator prepares the recording directories under dataDir.
func NewCoordinator(st *store.Store, dataDir string, log *slog.Logger, cfg Config) (*Coordinator, error) {
	dir := filepath.Join(dataDir, "recordings")
	if err := os.MkdirAll(filepath.Join(dir, "uploads"), 0o755); err != nil {
		return nil, fmt.Errorf("ensure recordings dir: %w", err)
	}
	return &Coordinator{
		store:   st,
		dir:     dir,
		log:     log.With("component", "recordings"),
		cfg:     cfg,
		uploads: make(map[string]*Upload),
	}, nil
}

// BeginUpload opens a capture handle for the room. Uploads against unknown
// or cancelled rooms fail, as do uploads arriving after the late-upload
// grace following room end.
func (c *Coordinator) BeginUpload(ctx context.Context, roomID string) (*Upload, error) {
	room, err := c.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil || room.Status == models.RoomStatusCancelled {
		return nil, rooms.ErrRoomNotFound
	}
	if room.Status == models.RoomStatusEnded {
		if room.EndedAt == nil || time.Since(*room.EndedAt) > c.cfg.LateUploadGrace {
			return nil, rooms.ErrRoomNotFound
		}
	}

	id := uuid.New().String()
	path := filepath.Join(c.dir, "uploads", id+".part")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	upload := &Upload{
		ID:         id,
		RoomID:     room.ID,
		BookingRef: room.BookingRef,
		path:       path,
		file:       file,
	}

	c.mu.Lock()
	c.uploads[id] = upload
	c.mu.Unlock()
	return upload, nil
}

// Write appends capture bytes to an open upload.
func (c *Coordinator) Write(uploadID string, chunk []byte) error {
	c.mu.Lock()
	upload := c.uploads[uploadID]
	c.mu.Unlock()
	if upload == nil {
		return ErrUploadNotFound
	}

	n, err := upload.file.Write(chunk)
	upload.size += int64(n)
	if err != nil {
		return fmt.Errorf("write capture chunk: %w", err)
	}
	return nil
}

// Finalize closes the upload and records it, computing expiry from the
// retention window. On ErrQuotaExceeded the upload stays open so the caller
// can retry once space is freed; nothing is stored and the usage sum is
// unchanged.
func (c *Coordinator) Finalize(ctx context.Context, uploadID string, durationSeconds int) (*models.Recording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	upload := c.uploads[uploadID]
	if upload == nil {
		return nil, ErrUploadNotFound
	}

	total, err := c.store.TotalStoredBytes(ctx)
	if err != nil {
		return nil, err
	}
	if c.cfg.QuotaBytes > 0 && total+upload.size > c.cfg.QuotaBytes {
		return nil, fmt.Errorf("%w: stored %d + upload %d > cap %d",
			ErrQuotaExceeded, total, upload.size, c.cfg.QuotaBytes)
	}

	if err := upload.file.Close(); err != nil {
		return nil, fmt.Errorf("close upload file: %w", err)
	}

	now := time.Now().UTC()
	rec := models.Recording{
		ID:              uuid.New().String(),
		RoomID:          upload.RoomID,
		BookingRef:      upload.BookingRef,
		SizeBytes:       upload.size,
		DurationSeconds: durationSeconds,
		StoragePath:     filepath.Join(c.dir, upload.ID+".webm"),
		CreatedAt:       now,
		ExpiresAt:       now.Add(c.cfg.Retention),
	}

	if err := os.Rename(upload.path, rec.StoragePath); err != nil {
		return nil, fmt.Errorf("move recording into place: %w", err)
	}
	if err := c.store.InsertRecording(ctx, rec); err != nil {
		return nil, err
	}
	delete(c.uploads, uploadID)

	c.log.Info("recording stored",
		"recording_id", rec.ID, "room_id", rec.RoomID, "size_bytes", rec.SizeBytes)
	return &rec, nil
}

// Abort discards an open upload and its part file.
func (c *Coordinator) Abort(uploadID string) {
	c.mu.Lock()
	upload := c.uploads[uploadID]
	delete(c.uploads, uploadID)
	c.mu.Unlock()

	if upload == nil {
		return
	}
	_ = upload.file.Close()
	_ = os.Remove(upload.path)
}

// Save is the one-shot path behind save_video_recording: begin, write,
// finalize. On quota rejection the part file is discarded; the client still
// holds the capture and retries after operator intervention.
func (c *Coordinator) Save(ctx context.Context, roomID string, blob []byte, durationSeconds int) (*models.Recording, error) {
	upload, err := c.BeginUpload(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := c.Write(upload.ID, blob); err != nil {
		c.Abort(upload.ID)
		return nil, err
	}
	rec, err := c.Finalize(ctx, upload.ID, durationSeconds)
	if err != nil {
		c.Abort(upload.ID)
		return nil, err
	}
	return rec, nil
}

// List returns all recordings plus aggregate usage.
func (c *Coordinator) List(ctx context.Context) (*models.RecordingListResponse, error) {
	recs, err := c.store.ListRecordings(ctx)
	if err != nil {
		return nil, err
	}
	total, err := c.store.TotalStoredBytes(ctx)
	if err != nil {
		return nil, err
	}
	return &models.RecordingListResponse{
		Recordings:       recs,
		StorageUsed:      total,
		StorageFormatted: humanize.Bytes(uint64(total)),
	}, nil
}

// Open returns a reader over an unexpired recording for download.
func (c *Coordinator) Open(ctx context.Context, recordingID string) (*models.Recording, io.ReadCloser, error) {
	rec, err := c.store.GetRecording(ctx, recordingID)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil || rec.Expired(time.Now().UTC()) {
		return nil, nil, ErrRecordingNotFound
	}
	file, err := os.Open(rec.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open recording file: %w", err)
	}
	return rec, file, nil
}

// Delete removes a recording immediately. Irreversible.
func (c *Coordinator) Delete(ctx context.Context, recordingID string) error {
	rec, err := c.store.GetRecording(ctx, recordingID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrRecordingNotFound
	}

	ok, err := c.store.DeleteRecording(ctx, recordingID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRecordingNotFound
	}
	if err := os.Remove(rec.StoragePath); err != nil && !os.IsNotExist(err) {
		c.log.Error("failed to remove recording file",
			"recording_id", recordingID, "path", rec.StoragePath, "error", err)
	}

	c.log.Info("recording deleted", "recording_id", recordingID)
	return nil
}

// SweepExpired deletes recordings past expiry, reclaiming quota.
func (c *Coordinator) SweepExpired(ctx context.Context) {
	expired, err := c.store.ListExpiredRecordings(ctx, time.Now().UTC())
	if err != nil {
		c.log.Error("expiry sweep failed to list recordings", "error", err)
		return
	}
	for _, rec := range expired {
		if err := c.Delete(ctx, rec.ID); err != nil {
			c.log.Error("expiry sweep failed to delete recording",
				"recording_id", rec.ID, "error", err)
			continue
		}
		c.log.Info("expired recording removed", "recording_id", rec.ID)
	}
}
