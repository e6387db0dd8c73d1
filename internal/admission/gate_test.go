package admission_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dunskii/consult-relay/internal/admission"
	"github.com/dunskii/consult-relay/internal/models"
	"github.com/dunskii/consult-relay/internal/rooms"
	"github.com/dunskii/consult-relay/internal/signals"
	"github.com/dunskii/consult-relay/internal/store"
)

type fixture struct {
	mgr     *rooms.Manager
	gate    *admission.Gate
	signals *signals.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sig := signals.NewMemoryStore(nil)
	mgr := rooms.NewManager(st, sig, rooms.NewRegistry(), log, rooms.ManagerConfig{
		WaitingRoomDefault: true,
	})
	gate := admission.NewGate(mgr, sig, log)
	return &fixture{mgr: mgr, gate: gate, signals: sig}
}

// activeRoom creates and starts a room; waitingRoom selects the admission policy.
func (f *fixture) activeRoom(t *testing.T, waitingRoom bool) *models.Room {
	t.Helper()
	ctx := context.Background()
	room, err := f.mgr.Create(ctx, models.CreateRoomRequest{
		BookingRef:     "booking-1",
		Provider:       "dr-jones",
		ScheduledStart: time.Now().UTC().Add(time.Minute),
		WaitingRoom:    &waitingRoom,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := f.mgr.Start(ctx, room.ID, models.RoleHost); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return room
}

func TestHostIsAdmittedImmediately(t *testing.T) {
	f := newFixture(t)
	room := f.activeRoom(t, true)

	result, err := f.gate.RequestEntry(context.Background(), room.ID, models.JoinRoomRequest{
		Name: "Dr Jones", IsHost: true,
	})
	if err != nil {
		t.Fatalf("RequestEntry failed: %v", err)
	}
	if result.Decision != admission.DecisionAdmitted {
		t.Fatalf("expected admitted, got %q", result.Decision)
	}
	if result.Ticket == nil || result.Ticket.Role != models.RoleHost || result.Ticket.PeerID == "" {
		t.Fatalf("unexpected ticket: %#v", result.Ticket)
	}
}

func TestGuestWaitsWhenGateEnabled(t *testing.T) {
	f := newFixture(t)
	room := f.activeRoom(t, true)
	ctx := context.Background()

	// A host is already connected and should hear about the request.
	f.mgr.Registry().AddPeer(room.ID, models.Peer{
		ID: "host-peer", Role: models.RoleHost, JoinedAt: time.Now().UTC(),
	})

	result, err := f.gate.RequestEntry(ctx, room.ID, models.JoinRoomRequest{Name: "Pat"})
	if err != nil {
		t.Fatalf("RequestEntry failed: %v", err)
	}
	if result.Decision != admission.DecisionWaiting || result.Participant == nil {
		t.Fatalf("expected waiting with participant, got %#v", result)
	}

	waiting := f.gate.ListWaiting(room.ID)
	if len(waiting) != 1 || waiting[0].Name != "Pat" {
		t.Fatalf("unexpected waiting list: %#v", waiting)
	}

	hostSignals, err := f.signals.Drain(ctx, room.ID, "host-peer")
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(hostSignals) != 1 || hostSignals[0].Type != models.SignalTypeJoinRequest {
		t.Fatalf("expected one join-request for host, got %#v", hostSignals)
	}
}

func TestGuestEntersDirectlyWhenGateDisabled(t *testing.T) {
	f := newFixture(t)
	room := f.activeRoom(t, false)

	result, err := f.gate.RequestEntry(context.Background(), room.ID, models.JoinRoomRequest{Name: "Pat"})
	if err != nil {
		t.Fatalf("RequestEntry failed: %v", err)
	}
	if result.Decision != admission.DecisionAdmitted {
		t.Fatalf("expected admitted, got %q", result.Decision)
	}
	if result.Ticket.Role != models.RoleGuest {
		t.Fatalf("unexpected role %q", result.Ticket.Role)
	}
}

func TestRequestEntryRequiresActiveRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.mgr.Create(ctx, models.CreateRoomRequest{
		BookingRef:     "booking-1",
		Provider:       "dr-jones",
		ScheduledStart: time.Now().UTC().Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = f.gate.RequestEntry(ctx, room.ID, models.JoinRoomRequest{Name: "Pat"})
	if !errors.Is(err, rooms.ErrRoomNotActive) {
		t.Fatalf("expected ErrRoomNotActive, got %v", err)
	}

	_, err = f.gate.RequestEntry(ctx, "no-such-room", models.JoinRoomRequest{Name: "Pat"})
	if !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestAdmitIsIdempotent(t *testing.T) {
	f := newFixture(t)
	room := f.activeRoom(t, true)
	ctx := context.Background()

	result, err := f.gate.RequestEntry(ctx, room.ID, models.JoinRoomRequest{Name: "Pat"})
	if err != nil {
		t.Fatalf("RequestEntry failed: %v", err)
	}
	participantID := result.Participant.ID

	first, err := f.gate.Admit(ctx, participantID)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	second, err := f.gate.Admit(ctx, participantID)
	if err != nil {
		t.Fatalf("repeat Admit failed: %v", err)
	}
	if first.PeerID != second.PeerID {
		t.Fatalf("repeat admit minted a second peer: %q vs %q", first.PeerID, second.PeerID)
	}

	// Exactly one admitted signal despite two admits.
	pending, err := f.signals.Drain(ctx, room.ID, participantID)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Type != models.SignalTypeAdmitted {
		t.Fatalf("expected one admitted signal, got %#v", pending)
	}

	if len(f.gate.ListWaiting(room.ID)) != 0 {
		t.Fatal("admitted participant still listed as waiting")
	}
}

func TestRejectNotifiesParticipant(t *testing.T) {
	f := newFixture(t)
	room := f.activeRoom(t, true)
	ctx := context.Background()

	result, err := f.gate.RequestEntry(ctx, room.ID, models.JoinRoomRequest{Name: "Pat"})
	if err != nil {
		t.Fatalf("RequestEntry failed: %v", err)
	}
	participantID := result.Participant.ID

	if err := f.gate.Reject(ctx, participantID); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	pending, err := f.signals.Drain(ctx, room.ID, participantID)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Type != models.SignalTypeRejected {
		t.Fatalf("expected one rejected signal, got %#v", pending)
	}

	// Once rejected, the participant is gone.
	if _, err := f.gate.Admit(ctx, participantID); !errors.Is(err, admission.ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
	if err := f.gate.Reject(ctx, participantID); !errors.Is(err, admission.ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
}

func TestAdmitFailsAfterRoomEnded(t *testing.T) {
	f := newFixture(t)
	room := f.activeRoom(t, true)
	ctx := context.Background()

	result, err := f.gate.RequestEntry(ctx, room.ID, models.JoinRoomRequest{Name: "Pat"})
	if err != nil {
		t.Fatalf("RequestEntry failed: %v", err)
	}

	if err := f.mgr.End(ctx, room.ID); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	_, err = f.gate.Admit(ctx, result.Participant.ID)
	if !errors.Is(err, rooms.ErrRoomNotActive) {
		t.Fatalf("expected ErrRoomNotActive, got %v", err)
	}
}

func TestEndHookClearsWaitingArea(t *testing.T) {
	f := newFixture(t)
	f.mgr.AddEndHook(f.gate.DropRoom)
	room := f.activeRoom(t, true)
	ctx := context.Background()

	if _, err := f.gate.RequestEntry(ctx, room.ID, models.JoinRoomRequest{Name: "Pat"}); err != nil {
		t.Fatalf("RequestEntry failed: %v", err)
	}
	if err := f.mgr.End(ctx, room.ID); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	if waiting := f.gate.ListWaiting(room.ID); len(waiting) != 0 {
		t.Fatalf("waiting area should be cleared on end, got %#v", waiting)
	}
}

func TestTicketIsConsumedOnce(t *testing.T) {
	f := newFixture(t)
	room := f.activeRoom(t, false)

	result, err := f.gate.RequestEntry(context.Background(), room.ID, models.JoinRoomRequest{Name: "Pat"})
	if err != nil {
		t.Fatalf("RequestEntry failed: %v", err)
	}

	if _, ok := f.gate.TakeTicket(room.ID, result.Ticket.PeerID); !ok {
		t.Fatal("expected ticket on first take")
	}
	if _, ok := f.gate.TakeTicket(room.ID, result.Ticket.PeerID); ok {
		t.Fatal("ticket must not be consumable twice")
	}
}
