package rooms

import (
	"sort"
	"sync"
	"time"

	"github.com/dunskii/consult-relay/internal/models"
)

// Registry tracks the connected peers and last relay activity of every live
// room. State is keyed by room id so unrelated rooms never share a lock.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*roomPeers
}

type roomPeers struct {
	mu           sync.Mutex
	peers        map[string]models.Peer
	lastActivity time.Time
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*roomPeers)}
}

func (r *Registry) get(roomID string, create bool) *roomPeers {
	r.mu.RLock()
	entry := r.rooms[roomID]
	r.mu.RUnlock()
	if entry != nil || !create {
		return entry
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry = r.rooms[roomID]; entry == nil {
		entry = &roomPeers{
			peers:        make(map[string]models.Peer),
			lastActivity: time.Now().UTC(),
		}
		r.rooms[roomID] = entry
	}
	return entry
}

// AddPeer registers a connected peer. Re-adding the same peer id refreshes
// its record; a new id beyond the mesh cap fails with ErrRoomFull.
func (r *Registry) AddPeer(roomID string, peer models.Peer) error {
	entry := r.get(roomID, true)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if _, exists := entry.peers[peer.ID]; !exists && len(entry.peers) >= models.MaxConnectedPeers {
		return ErrRoomFull
	}
	entry.peers[peer.ID] = peer
	entry.lastActivity = time.Now().UTC()
	return nil
}

// RemovePeer deregisters a peer, reporting whether it was connected.
func (r *Registry) RemovePeer(roomID, peerID string) bool {
	entry := r.get(roomID, false)
	if entry == nil {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if _, exists := entry.peers[peerID]; !exists {
		return false
	}
	delete(entry.peers, peerID)
	entry.lastActivity = time.Now().UTC()
	return true
}

// HasPeer reports whether the peer is currently connected to the room.
func (r *Registry) HasPeer(roomID, peerID string) bool {
	entry := r.get(roomID, false)
	if entry == nil {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	_, exists := entry.peers[peerID]
	return exists
}

// Peers returns the room's connected peers ordered by join time.
func (r *Registry) Peers(roomID string) []models.Peer {
	entry := r.get(roomID, false)
	if entry == nil {
		return nil
	}

	entry.mu.Lock()
	result := make([]models.Peer, 0, len(entry.peers))
	for _, peer := range entry.peers {
		result = append(result, peer)
	}
	entry.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].JoinedAt.Before(result[j].JoinedAt)
	})
	return result
}

// Touch records relay activity for the idle sweep.
func (r *Registry) Touch(roomID string) {
	entry := r.get(roomID, false)
	if entry == nil {
		return
	}
	entry.mu.Lock()
	entry.lastActivity = time.Now().UTC()
	entry.mu.Unlock()
}

// LastActivity returns the room's most recent relay activity, if the room
// has any registry state.
func (r *Registry) LastActivity(roomID string) (time.Time, bool) {
	entry := r.get(roomID, false)
	if entry == nil {
		return time.Time{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.lastActivity, true
}

// DropRoom removes the room's registry state and returns the peers that were
// still connected, so the caller can notify them.
func (r *Registry) DropRoom(roomID string) []models.Peer {
	r.mu.Lock()
	entry := r.rooms[roomID]
	delete(r.rooms, roomID)
	r.mu.Unlock()

	if entry == nil {
		return nil
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	result := make([]models.Peer, 0, len(entry.peers))
	for _, peer := range entry.peers {
		result = append(result, peer)
	}
	return result
}
