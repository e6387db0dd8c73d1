package signals

import "sync"

// Hub lets the push channel learn that a peer's queue has new signals
// without the store growing transport concerns. Notifications are
// best-effort edge triggers; subscribers drain the store to read.
type Hub struct {
	mu   sync.Mutex
	subs map[string]chan struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan struct{})}
}

// Subscribe registers interest in (room, peer) and returns the notify
// channel plus a cancel func. A second subscriber for the same key replaces
// the first.
func (h *Hub) Subscribe(roomID, peerID string) (<-chan struct{}, func()) {
	key := roomID + "|" + peerID
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	h.subs[key] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if h.subs[key] == ch {
			delete(h.subs, key)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Notify wakes the subscriber for (room, peer), if any.
func (h *Hub) Notify(roomID, peerID string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	ch := h.subs[roomID+"|"+peerID]
	h.mu.Unlock()

	if ch != nil {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
