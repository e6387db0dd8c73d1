// Package admission gates guest entry to a room behind host approval. A
// waiting guest holds no peer id and hears nothing but the admission
// verdict, so it can never start negotiating before the host lets it in.
package admission

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dunskii/consult-relay/internal/models"
	"github.com/dunskii/consult-relay/internal/rooms"
	"github.com/dunskii/consult-relay/internal/signals"
)

// ErrParticipantNotFound means no waiting participant has that id.
var ErrParticipantNotFound = errors.New("waiting participant not found")

// Decision is the outcome of an entry request.
type Decision string

const (
	DecisionAdmitted Decision = "admitted"
	DecisionWaiting  Decision = "waiting"
)

// Ticket grants a participant a peer id for the relay join. It is consumed
// by the first join that presents it.
type Ticket struct {
	RoomID string
	PeerID string
	Name   string
	Role   models.PeerRole
}

// EntryResult carries either a ticket (admitted) or a waiting participant.
type EntryResult struct {
	Decision    Decision
	Ticket      *Ticket
	Participant *models.WaitingParticipant
}

// Gate is the waiting-room admission gate for all rooms, keyed by room id.
type Gate struct {
	rooms   *rooms.Manager
	signals signals.Store
	log     *slog.Logger

	mu       sync.Mutex
	waiting  map[string]*models.WaitingParticipant // by participant id
	byRoom   map[string]map[string]struct{}        // room id -> participant ids
	byPeer   map[string]*Ticket                    // granted peer id -> ticket
	admitted map[string]*Ticket                    // participant id -> ticket, for idempotent admits
}

func NewGate(roomMgr *rooms.Manager, sig signals.Store, log *slog.Logger) *Gate {
	return &Gate{
		rooms:    roomMgr,
		signals:  sig,
		log:      log.With("component", "admission"),
		waiting:  make(map[string]*models.WaitingParticipant),
		byRoom:   make(map[string]map[string]struct{}),
		byPeer:   make(map[string]*Ticket),
		admitted: make(map[string]*Ticket),
	}
}

// RequestEntry handles join_video_room. Hosts are admitted immediately.
// Guests are admitted immediately only when the room's waiting room is
// disabled; otherwise they are parked and the host's peers are notified over
// the existing signal channel.
func (g *Gate) RequestEntry(ctx context.Context, roomID string, req models.JoinRoomRequest) (*EntryResult, error) {
	room, err := g.rooms.ActiveRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if req.IsHost {
		ticket := g.mintTicket(roomID, req.Name, models.RoleHost)
		return &EntryResult{Decision: DecisionAdmitted, Ticket: ticket}, nil
	}

	if !room.WaitingRoomEnabled {
		ticket := g.mintTicket(roomID, req.Name, models.RoleGuest)
		return &EntryResult{Decision: DecisionAdmitted, Ticket: ticket}, nil
	}

	participant := &models.WaitingParticipant{
		ID:          uuid.New().String(),
		RoomID:      roomID,
		Name:        req.Name,
		Email:       req.Email,
		RequestedAt: time.Now().UTC(),
	}

	g.mu.Lock()
	g.waiting[participant.ID] = participant
	ids := g.byRoom[roomID]
	if ids == nil {
		ids = make(map[string]struct{})
		g.byRoom[roomID] = ids
	}
	ids[participant.ID] = struct{}{}
	g.mu.Unlock()

	g.notifyHosts(ctx, roomID, participant)

	g.log.Info("participant waiting",
		"room_id", roomID, "participant_id", participant.ID, "name", participant.Name)
	return &EntryResult{Decision: DecisionWaiting, Participant: participant}, nil
}

// notifyHosts tells every connected host peer about the new join request.
func (g *Gate) notifyHosts(ctx context.Context, roomID string, participant *models.WaitingParticipant) {
	data, err := json.Marshal(participant)
	if err != nil {
		g.log.Error("failed to marshal join request", "error", err)
		return
	}
	for _, peer := range g.rooms.Registry().Peers(roomID) {
		if peer.Role != models.RoleHost {
			continue
		}
		sig := models.Signal{
			Target: peer.ID,
			Type:   models.SignalTypeJoinRequest,
			Data:   data,
		}
		if err := g.signals.Append(ctx, roomID, sig); err != nil {
			g.log.Error("failed to notify host of join request",
				"room_id", roomID, "peer_id", peer.ID, "error", err)
		}
	}
}

// ListWaiting returns the room's waiting participants in request order.
func (g *Gate) ListWaiting(roomID string) []models.WaitingParticipant {
	g.mu.Lock()
	ids := g.byRoom[roomID]
	result := make([]models.WaitingParticipant, 0, len(ids))
	for id := range ids {
		if participant := g.waiting[id]; participant != nil {
			result = append(result, *participant)
		}
	}
	g.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].RequestedAt.Before(result[j].RequestedAt)
	})
	return result
}

// Admit promotes a waiting participant, granting it a peer id and emitting
// one admitted signal. Admitting the same participant again returns the
// existing ticket without a second signal.
func (g *Gate) Admit(ctx context.Context, participantID string) (*Ticket, error) {
	g.mu.Lock()
	if ticket := g.admitted[participantID]; ticket != nil {
		g.mu.Unlock()
		return ticket, nil
	}
	participant := g.waiting[participantID]
	g.mu.Unlock()

	if participant == nil {
		return nil, ErrParticipantNotFound
	}
	if _, err := g.rooms.ActiveRoom(ctx, participant.RoomID); err != nil {
		return nil, err
	}

	ticket := g.mintTicket(participant.RoomID, participant.Name, models.RoleGuest)

	g.mu.Lock()
	// Re-check under the lock so two concurrent admits agree on one ticket.
	if existing := g.admitted[participantID]; existing != nil {
		delete(g.byPeer, ticket.PeerID)
		g.mu.Unlock()
		return existing, nil
	}
	g.admitted[participantID] = ticket
	delete(g.waiting, participantID)
	if ids := g.byRoom[participant.RoomID]; ids != nil {
		delete(ids, participantID)
	}
	g.mu.Unlock()

	data, _ := json.Marshal(map[string]string{"peer_id": ticket.PeerID})
	sig := models.Signal{
		Target: participantID,
		Type:   models.SignalTypeAdmitted,
		Data:   data,
	}
	if err := g.signals.Append(ctx, participant.RoomID, sig); err != nil {
		return nil, err
	}

	g.log.Info("participant admitted",
		"room_id", participant.RoomID, "participant_id", participantID, "peer_id", ticket.PeerID)
	return ticket, nil
}

// Reject removes a waiting participant and tells it so its client can show
// a "not admitted" state. There is no retry.
func (g *Gate) Reject(ctx context.Context, participantID string) error {
	g.mu.Lock()
	participant := g.waiting[participantID]
	if participant != nil {
		delete(g.waiting, participantID)
		if ids := g.byRoom[participant.RoomID]; ids != nil {
			delete(ids, participantID)
		}
	}
	g.mu.Unlock()

	if participant == nil {
		return ErrParticipantNotFound
	}

	sig := models.Signal{
		Target: participantID,
		Type:   models.SignalTypeRejected,
	}
	if err := g.signals.Append(ctx, participant.RoomID, sig); err != nil {
		return err
	}

	g.log.Info("participant rejected",
		"room_id", participant.RoomID, "participant_id", participantID)
	return nil
}

// TakeTicket consumes the ticket granted to peerID for roomID. The relay
// join calls this; a missing ticket means the caller was never admitted.
func (g *Gate) TakeTicket(roomID, peerID string) (*Ticket, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ticket := g.byPeer[peerID]
	if ticket == nil || ticket.RoomID != roomID {
		return nil, false
	}
	delete(g.byPeer, peerID)
	return ticket, true
}

// DropRoom clears the room's waiting area and unconsumed tickets. Wired as
// a room end hook: waiting participants are destroyed on room end.
func (g *Gate) DropRoom(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id := range g.byRoom[roomID] {
		delete(g.waiting, id)
	}
	delete(g.byRoom, roomID)

	for peerID, ticket := range g.byPeer {
		if ticket.RoomID == roomID {
			delete(g.byPeer, peerID)
		}
	}
	for participantID, ticket := range g.admitted {
		if ticket.RoomID == roomID {
			delete(g.admitted, participantID)
		}
	}
}

func (g *Gate) mintTicket(roomID, name string, role models.PeerRole) *Ticket {
	ticket := &Ticket{
		RoomID: roomID,
		PeerID: uuid.New().String(),
		Name:   name,
		Role:   role,
	}
	g.mu.Lock()
	g.byPeer[ticket.PeerID] = ticket
	g.mu.Unlock()
	return ticket
}
