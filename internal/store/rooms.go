package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dunskii/consult-relay/internal/models"
)

const roomColumns = `id, booking_ref, provider, status, scheduled_start,
    started_at, ended_at, duration_seconds, waiting_room_enabled, end_reason, created_at`

// CreateRoom inserts a new room row.
func (s *Store) CreateRoom(ctx context.Context, room models.Room) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO rooms (
            id, booking_ref, provider, status, scheduled_start,
            started_at, ended_at, duration_seconds, waiting_room_enabled, end_reason, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		room.ID,
		room.BookingRef,
		room.Provider,
		string(room.Status),
		formatTime(room.ScheduledStart),
		nullableTime(room.StartedAt),
		nullableTime(room.EndedAt),
		room.DurationSeconds,
		boolToInt(room.WaitingRoomEnabled),
		nullableString(room.EndReason),
		formatTime(room.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// GetRoom returns the room with the given id, or nil when no row exists.
func (s *Store) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

// ListRooms returns rooms filtered by optional status and provider, newest
// schedule first.
func (s *Store) ListRooms(ctx context.Context, status, provider string) ([]models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms`
	var clauses []string
	var args []any
	if status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, status)
	}
	if provider != "" {
		clauses = append(clauses, "provider = ?")
		args = append(args, provider)
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY scheduled_start DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var result []models.Room
	for rows.Next() {
		room, scanErr := scanRoom(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan room: %w", scanErr)
		}
		result = append(result, *room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return result, nil
}

// StartRoom moves a scheduled room to active. Returns false when the guarded
// update matched no row, i.e. the room is not currently scheduled.
func (s *Store) StartRoom(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE rooms SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		string(models.RoomStatusActive),
		formatTime(now),
		id,
		string(models.RoomStatusScheduled),
	)
	if err != nil {
		return false, fmt.Errorf("start room: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("start room rows affected: %w", err)
	}
	return affected > 0, nil
}

// FinishRoom moves an active room to a terminal status, stamping end time
// and duration. Returns false when the room is not currently active (a
// racing transition already won).
func (s *Store) FinishRoom(ctx context.Context, id string, to models.RoomStatus, now time.Time, durationSeconds int, reason string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE rooms SET status = ?, ended_at = ?, duration_seconds = ?, end_reason = ?
         WHERE id = ? AND status = ?`,
		string(to),
		formatTime(now),
		durationSeconds,
		nullableString(reason),
		id,
		string(models.RoomStatusActive),
	)
	if err != nil {
		return false, fmt.Errorf("finish room: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finish room rows affected: %w", err)
	}
	return affected > 0, nil
}

// CancelScheduledRoom moves a scheduled room straight to cancelled.
func (s *Store) CancelScheduledRoom(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE rooms SET status = ?, ended_at = ?, end_reason = ? WHERE id = ? AND status = ?`,
		string(models.RoomStatusCancelled),
		formatTime(now),
		"cancelled",
		id,
		string(models.RoomStatusScheduled),
	)
	if err != nil {
		return false, fmt.Errorf("cancel room: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel room rows affected: %w", err)
	}
	return affected > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*models.Room, error) {
	var (
		room               models.Room
		status             string
		scheduledStart     string
		startedAt, endedAt sql.NullString
		waitingRoom        int
		endReason          sql.NullString
		createdAt          string
	)
	if err := row.Scan(
		&room.ID,
		&room.BookingRef,
		&room.Provider,
		&status,
		&scheduledStart,
		&startedAt,
		&endedAt,
		&room.DurationSeconds,
		&waitingRoom,
		&endReason,
		&createdAt,
	); err != nil {
		return nil, err
	}

	room.Status = models.RoomStatus(status)
	room.WaitingRoomEnabled = waitingRoom != 0
	room.EndReason = endReason.String

	var err error
	if room.ScheduledStart, err = parseTime(scheduledStart); err != nil {
		return nil, err
	}
	if room.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		t, parseErr := parseTime(startedAt.String)
		if parseErr != nil {
			return nil, parseErr
		}
		room.StartedAt = &t
	}
	if endedAt.Valid {
		t, parseErr := parseTime(endedAt.String)
		if parseErr != nil {
			return nil, parseErr
		}
		room.EndedAt = &t
	}
	return &room, nil
}
