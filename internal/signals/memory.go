package signals

import (
	"context"
	"sync"
	"time"

	"github.com/dunskii/consult-relay/internal/models"
)

// MemoryStore keeps queues in process memory. It serves single-node
// deployments and tests; multi-node deployments use the Redis store.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]map[string][]models.Signal
	hub   *Hub
}

// NewMemoryStore returns an empty in-memory store. hub may be nil.
func NewMemoryStore(hub *Hub) *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]map[string][]models.Signal),
		hub:   hub,
	}
}

func (m *MemoryStore) Append(ctx context.Context, roomID string, sig models.Signal) error {
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	queues, ok := m.rooms[roomID]
	if !ok {
		queues = make(map[string][]models.Signal)
		m.rooms[roomID] = queues
	}
	queues[sig.Target] = append(queues[sig.Target], sig)
	m.mu.Unlock()

	m.hub.Notify(roomID, sig.Target)
	return nil
}

func (m *MemoryStore) Drain(ctx context.Context, roomID, peerID string) ([]models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queues, ok := m.rooms[roomID]
	if !ok {
		return nil, nil
	}
	pending := queues[peerID]
	if len(pending) == 0 {
		return nil, nil
	}
	delete(queues, peerID)
	if len(queues) == 0 {
		delete(m.rooms, roomID)
	}
	return pending, nil
}

func (m *MemoryStore) DropRoom(ctx context.Context, roomID string) error {
	m.mu.Lock()
	delete(m.rooms, roomID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Sweep(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().UTC().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	for roomID, queues := range m.rooms {
		for peerID, pending := range queues {
			// Queues are append-only in creation order, so expired signals
			// form a prefix.
			idx := 0
			for idx < len(pending) && pending[idx].CreatedAt.Before(cutoff) {
				idx++
			}
			if idx == 0 {
				continue
			}
			if idx == len(pending) {
				delete(queues, peerID)
			} else {
				queues[peerID] = pending[idx:]
			}
		}
		if len(queues) == 0 {
			delete(m.rooms, roomID)
		}
	}
	return nil
}
