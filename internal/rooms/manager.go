// Package rooms owns the consultation room state machine: scheduled ->
// active -> ended, with cancellation from any non-terminal state.
package rooms

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dunskii/consult-relay/internal/models"
	"github.com/dunskii/consult-relay/internal/signals"
	"github.com/dunskii/consult-relay/internal/store"
)

// ManagerConfig carries the lifecycle tuning knobs.
type ManagerConfig struct {
	// ScheduleGrace is how far in the past a new room's start may lie.
	ScheduleGrace time.Duration
	// IdleWindow is how long an active room may go without relay activity
	// before the sweep ends it.
	IdleWindow time.Duration
	// WaitingRoomDefault applies when a create request does not say.
	WaitingRoomDefault bool
}

// Manager drives room lifecycle transitions and announces them to connected
// peers through the signal store.
type Manager struct {
	store    *store.Store
	signals  signals.Store
	registry *Registry
	log      *slog.Logger
	cfg      ManagerConfig

	endHooks []func(roomID string)
}

func NewManager(st *store.Store, sig signals.Store, reg *Registry, log *slog.Logger, cfg ManagerConfig) *Manager {
	if cfg.ScheduleGrace <= 0 {
		cfg.ScheduleGrace = 5 * time.Minute
	}
	if cfg.IdleWindow <= 0 {
		cfg.IdleWindow = 30 * time.Minute
	}
	return &Manager{
		store:    st,
		signals:  sig,
		registry: reg,
		log:      log.With("component", "rooms"),
		cfg:      cfg,
	}
}

// AddEndHook registers a callback invoked after a room reaches a terminal
// state. The admission gate uses this to clear its waiting area.
func (m *Manager) AddEndHook(hook func(roomID string)) {
	m.endHooks = append(m.endHooks, hook)
}

// Registry exposes the connected-peer registry to collaborating components.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Create records a room for a confirmed booking.
func (m *Manager) Create(ctx context.Context, req models.CreateRoomRequest) (*models.Room, error) {
	now := time.Now().UTC()
	if req.ScheduledStart.Before(now.Add(-m.cfg.ScheduleGrace)) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSchedule, req.ScheduledStart.Format(time.RFC3339))
	}

	waitingRoom := m.cfg.WaitingRoomDefault
	if req.WaitingRoom != nil {
		waitingRoom = *req.WaitingRoom
	}

	room := models.Room{
		ID:                 uuid.New().String(),
		BookingRef:         req.BookingRef,
		Provider:           req.Provider,
		Status:             models.RoomStatusScheduled,
		ScheduledStart:     req.ScheduledStart.UTC(),
		WaitingRoomEnabled: waitingRoom,
		CreatedAt:          now,
	}
	if err := m.store.CreateRoom(ctx, room); err != nil {
		return nil, err
	}

	m.log.Info("room created",
		"room_id", room.ID, "booking_ref", room.BookingRef, "provider", room.Provider)
	return &room, nil
}

// Get returns a room or ErrRoomNotFound.
func (m *Manager) Get(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := m.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// ActiveRoom returns the room only when it is currently active.
func (m *Manager) ActiveRoom(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := m.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomStatusActive {
		return nil, ErrRoomNotActive
	}
	return room, nil
}

// List returns rooms filtered by optional status and provider.
func (m *Manager) List(ctx context.Context, status, provider string) ([]models.Room, error) {
	return m.store.ListRooms(ctx, status, provider)
}

// Start transitions scheduled -> active. Only a host may start a room.
// Starting an already-active room succeeds without effect.
func (m *Manager) Start(ctx context.Context, roomID string, role models.PeerRole) error {
	if role != models.RoleHost {
		return ErrForbidden
	}

	room, err := m.Get(ctx, roomID)
	if err != nil {
		return err
	}
	switch room.Status {
	case models.RoomStatusActive:
		return nil
	case models.RoomStatusEnded, models.RoomStatusCancelled:
		return ErrRoomNotActive
	}

	ok, err := m.store.StartRoom(ctx, roomID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return ErrStateConflict
	}

	m.log.Info("room started", "room_id", roomID)
	return nil
}

// End transitions active -> ended and wakes every connected peer with a
// leave signal so orchestrators tear down immediately.
func (m *Manager) End(ctx context.Context, roomID string) error {
	return m.finish(ctx, roomID, models.RoomStatusEnded, "")
}

// Cancel is allowed from scheduled or active; from active it behaves like
// End but tags the reason.
func (m *Manager) Cancel(ctx context.Context, roomID string) error {
	room, err := m.Get(ctx, roomID)
	if err != nil {
		return err
	}

	switch room.Status {
	case models.RoomStatusScheduled:
		ok, cancelErr := m.store.CancelScheduledRoom(ctx, roomID, time.Now().UTC())
		if cancelErr != nil {
			return cancelErr
		}
		if !ok {
			return ErrStateConflict
		}
		m.runEndHooks(roomID)
		m.log.Info("room cancelled", "room_id", roomID)
		return nil
	case models.RoomStatusActive:
		return m.finish(ctx, roomID, models.RoomStatusCancelled, "cancelled")
	default:
		return ErrRoomNotActive
	}
}

func (m *Manager) finish(ctx context.Context, roomID string, to models.RoomStatus, reason string) error {
	room, err := m.Get(ctx, roomID)
	if err != nil {
		return err
	}
	switch room.Status {
	case models.RoomStatusScheduled:
		return ErrNotActive
	case models.RoomStatusEnded, models.RoomStatusCancelled:
		return ErrRoomNotActive
	}

	now := time.Now().UTC()
	duration := 0
	if room.StartedAt != nil {
		duration = int(now.Sub(*room.StartedAt) / time.Second)
	}

	ok, err := m.store.FinishRoom(ctx, roomID, to, now, duration, reason)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStateConflict
	}

	// Exactly one leave per peer still connected at the moment of the
	// transition; peers who already left get nothing.
	for _, peer := range m.registry.DropRoom(roomID) {
		sig := models.Signal{
			Target:    peer.ID,
			Type:      models.SignalTypeLeave,
			CreatedAt: now,
		}
		if appendErr := m.signals.Append(ctx, roomID, sig); appendErr != nil {
			m.log.Error("failed to signal room end",
				"room_id", roomID, "peer_id", peer.ID, "error", appendErr)
		}
	}
	m.runEndHooks(roomID)

	m.log.Info("room finished",
		"room_id", roomID, "status", string(to), "duration_seconds", duration)
	return nil
}

func (m *Manager) runEndHooks(roomID string) {
	for _, hook := range m.endHooks {
		hook(roomID)
	}
}

// SweepIdle ends active rooms with no relay activity inside the idle
// window, so abandoned sessions do not stay active forever.
func (m *Manager) SweepIdle(ctx context.Context) {
	active, err := m.store.ListRooms(ctx, string(models.RoomStatusActive), "")
	if err != nil {
		m.log.Error("idle sweep failed to list rooms", "error", err)
		return
	}

	now := time.Now().UTC()
	for _, room := range active {
		last, ok := m.registry.LastActivity(room.ID)
		if !ok {
			// No relay traffic since this instance started; fall back to
			// the start timestamp.
			if room.StartedAt != nil {
				last = *room.StartedAt
			} else {
				last = room.CreatedAt
			}
		}
		if now.Sub(last) < m.cfg.IdleWindow {
			continue
		}
		if err := m.finish(ctx, room.ID, models.RoomStatusEnded, "idle"); err != nil {
			m.log.Error("idle sweep failed to end room", "room_id", room.ID, "error", err)
			continue
		}
		m.log.Info("idle room ended", "room_id", room.ID)
	}
}
