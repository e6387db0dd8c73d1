package recordings_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dunskii/consult-relay/internal/models"
	"github.com/dunskii/consult-relay/internal/recordings"
	"github.com/dunskii/consult-relay/internal/rooms"
	"github.com/dunskii/consult-relay/internal/store"
)

func newCoordinator(t *testing.T, cfg recordings.Config) (*recordings.Coordinator, *store.Store) {
	t.Helper()
	dataDir := t.TempDir()
	st, err := store.Open(dataDir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	coord, err := recordings.NewCoordinator(st, dataDir, log, cfg)
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}
	return coord, st
}

func insertRoom(t *testing.T, st *store.Store, id string, status models.RoomStatus, endedAgo time.Duration) {
	t.Helper()
	now := time.Now().UTC()
	room := models.Room{
		ID:             id,
		BookingRef:     "booking-" + id,
		Provider:       "dr-jones",
		Status:         status,
		ScheduledStart: now,
		CreatedAt:      now,
	}
	if status == models.RoomStatusEnded {
		ended := now.Add(-endedAgo)
		room.EndedAt = &ended
	}
	if err := st.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
}

func TestSaveComputesExpiryAndUsage(t *testing.T) {
	coord, st := newCoordinator(t, recordings.Config{
		Retention:  time.Hour,
		QuotaBytes: 1 << 20,
	})
	ctx := context.Background()
	insertRoom(t, st, "r1", models.RoomStatusActive, 0)

	blob := []byte("capture-bytes")
	before := time.Now().UTC()
	rec, err := coord.Save(ctx, "r1", blob, 42)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if rec.SizeBytes != int64(len(blob)) {
		t.Fatalf("size %d, want %d", rec.SizeBytes, len(blob))
	}
	if rec.DurationSeconds != 42 {
		t.Fatalf("duration %d, want 42", rec.DurationSeconds)
	}
	if rec.ExpiresAt.Before(before.Add(time.Hour).Add(-time.Minute)) {
		t.Fatalf("expiry %v not near retention window", rec.ExpiresAt)
	}
	if _, err := os.Stat(rec.StoragePath); err != nil {
		t.Fatalf("recording file missing: %v", err)
	}

	list, err := coord.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list.Recordings) != 1 {
		t.Fatalf("expected 1 recording, got %d", len(list.Recordings))
	}
	if list.StorageUsed != int64(len(blob)) {
		t.Fatalf("storage used %d, want %d", list.StorageUsed, len(blob))
	}
	if list.StorageFormatted == "" {
		t.Fatal("expected formatted storage total")
	}
}

func TestFinalizeIsQuotaSafe(t *testing.T) {
	coord, st := newCoordinator(t, recordings.Config{
		Retention:  time.Hour,
		QuotaBytes: 10,
	})
	ctx := context.Background()
	insertRoom(t, st, "r1", models.RoomStatusActive, 0)

	if _, err := coord.Save(ctx, "r1", []byte("12345678"), 1); err != nil {
		t.Fatalf("Save within quota failed: %v", err)
	}

	_, err := coord.Save(ctx, "r1", []byte("12345678"), 1)
	if !errors.Is(err, recordings.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	// The rejected finalize left the stored sum unchanged.
	total, err := st.TotalStoredBytes(ctx)
	if err != nil {
		t.Fatalf("TotalStoredBytes failed: %v", err)
	}
	if total != 8 {
		t.Fatalf("stored sum changed on rejected finalize: %d", total)
	}
}

func TestQuotaRejectedUploadCanRetryAfterDelete(t *testing.T) {
	coord, st := newCoordinator(t, recordings.Config{
		Retention:  time.Hour,
		QuotaBytes: 10,
	})
	ctx := context.Background()
	insertRoom(t, st, "r1", models.RoomStatusActive, 0)

	first, err := coord.Save(ctx, "r1", []byte("12345678"), 1)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	upload, err := coord.BeginUpload(ctx, "r1")
	if err != nil {
		t.Fatalf("BeginUpload failed: %v", err)
	}
	if err := coord.Write(upload.ID, []byte("87654321")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := coord.Finalize(ctx, upload.ID, 1); !errors.Is(err, recordings.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	// Operator frees space; the same upload handle finalizes cleanly.
	if err := coord.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	rec, err := coord.Finalize(ctx, upload.ID, 1)
	if err != nil {
		t.Fatalf("retry Finalize failed: %v", err)
	}
	if rec.SizeBytes != 8 {
		t.Fatalf("unexpected size %d", rec.SizeBytes)
	}
}

func TestBeginUploadRejectsUnknownAndStaleRooms(t *testing.T) {
	coord, st := newCoordinator(t, recordings.Config{
		Retention:       time.Hour,
		LateUploadGrace: time.Hour,
	})
	ctx := context.Background()

	if _, err := coord.BeginUpload(ctx, "nope"); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound for unknown room, got %v", err)
	}

	insertRoom(t, st, "stale", models.RoomStatusEnded, 2*time.Hour)
	if _, err := coord.BeginUpload(ctx, "stale"); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound past late-upload grace, got %v", err)
	}

	// A recently ended room still accepts its capture.
	insertRoom(t, st, "fresh", models.RoomStatusEnded, time.Minute)
	upload, err := coord.BeginUpload(ctx, "fresh")
	if err != nil {
		t.Fatalf("BeginUpload within grace failed: %v", err)
	}
	coord.Abort(upload.ID)
}

func TestDeleteRemovesRowAndFile(t *testing.T) {
	coord, st := newCoordinator(t, recordings.Config{Retention: time.Hour})
	ctx := context.Background()
	insertRoom(t, st, "r1", models.RoomStatusActive, 0)

	rec, err := coord.Save(ctx, "r1", []byte("capture"), 1)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := coord.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := os.Stat(rec.StoragePath); !os.IsNotExist(err) {
		t.Fatalf("expected file gone, stat err: %v", err)
	}
	if err := coord.Delete(ctx, rec.ID); !errors.Is(err, recordings.ErrRecordingNotFound) {
		t.Fatalf("expected ErrRecordingNotFound, got %v", err)
	}
}

func TestSweepExpiredReclaimsQuota(t *testing.T) {
	coord, st := newCoordinator(t, recordings.Config{Retention: time.Millisecond})
	ctx := context.Background()
	insertRoom(t, st, "r1", models.RoomStatusActive, 0)

	rec, err := coord.Save(ctx, "r1", []byte("capture"), 1)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	coord.SweepExpired(ctx)

	total, err := st.TotalStoredBytes(ctx)
	if err != nil {
		t.Fatalf("TotalStoredBytes failed: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected quota reclaimed, stored %d", total)
	}
	if _, err := os.Stat(rec.StoragePath); !os.IsNotExist(err) {
		t.Fatalf("expected file gone, stat err: %v", err)
	}
}

func TestExpiredRecordingIsNotRetrievable(t *testing.T) {
	coord, st := newCoordinator(t, recordings.Config{Retention: time.Millisecond})
	ctx := context.Background()
	insertRoom(t, st, "r1", models.RoomStatusActive, 0)

	rec, err := coord.Save(ctx, "r1", []byte("capture"), 1)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, _, err := coord.Open(ctx, rec.ID); !errors.Is(err, recordings.ErrRecordingNotFound) {
		t.Fatalf("expected ErrRecordingNotFound for expired recording, got %v", err)
	}
}

func TestOpenStreamsRecording(t *testing.T) {
	coord, st := newCoordinator(t, recordings.Config{Retention: time.Hour})
	ctx := context.Background()
	insertRoom(t, st, "r1", models.RoomStatusActive, 0)

	rec, err := coord.Save(ctx, "r1", []byte("capture"), 1)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, reader, err := coord.Open(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read recording: %v", err)
	}
	if string(data) != "capture" {
		t.Fatalf("unexpected contents %q", data)
	}
	if got.ID != rec.ID {
		t.Fatalf("unexpected recording %q", got.ID)
	}
}
