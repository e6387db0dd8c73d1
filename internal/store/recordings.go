package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dunskii/consult-relay/internal/models"
)

const recordingColumns = `id, room_id, booking_ref, size_bytes, duration_seconds,
    storage_path, created_at, expires_at`

// InsertRecording stores a finalized recording row.
func (s *Store) InsertRecording(ctx context.Context, rec models.Recording) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO recordings (
            id, room_id, booking_ref, size_bytes, duration_seconds,
            storage_path, created_at, expires_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.RoomID,
		rec.BookingRef,
		rec.SizeBytes,
		rec.DurationSeconds,
		rec.StoragePath,
		formatTime(rec.CreatedAt),
		formatTime(rec.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

// GetRecording returns a recording row, or nil when no row exists.
func (s *Store) GetRecording(ctx context.Context, id string) (*models.Recording, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return rec, nil
}

// ListRecordings returns all recordings, newest first.
func (s *Store) ListRecordings(ctx context.Context) ([]models.Recording, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordingColumns+` FROM recordings ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var result []models.Recording
	for rows.Next() {
		rec, scanErr := scanRecording(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan recording: %w", scanErr)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}
	return result, nil
}

// ListExpiredRecordings returns recordings whose expiry lies before cutoff.
func (s *Store) ListExpiredRecordings(ctx context.Context, cutoff time.Time) ([]models.Recording, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE expires_at < ? ORDER BY expires_at`,
		formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("list expired recordings: %w", err)
	}
	defer rows.Close()

	var result []models.Recording
	for rows.Next() {
		rec, scanErr := scanRecording(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan recording: %w", scanErr)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired recordings: %w", err)
	}
	return result, nil
}

// DeleteRecording removes a recording row. Returns false when no row matched.
func (s *Store) DeleteRecording(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete recording: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete recording rows affected: %w", err)
	}
	return affected > 0, nil
}

// TotalStoredBytes sums the sizes of all stored recordings.
func (s *Store) TotalStoredBytes(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size_bytes), 0) FROM recordings`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum stored bytes: %w", err)
	}
	return total, nil
}

func scanRecording(row rowScanner) (*models.Recording, error) {
	var (
		rec       models.Recording
		createdAt string
		expiresAt string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.RoomID,
		&rec.BookingRef,
		&rec.SizeBytes,
		&rec.DurationSeconds,
		&rec.StoragePath,
		&createdAt,
		&expiresAt,
	); err != nil {
		return nil, err
	}

	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
