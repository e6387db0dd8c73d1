// Package signals holds the durable queues of pending signaling messages,
// keyed by (room, target peer). Delivery is at most once: draining a queue
// removes what it returns, and two consecutive drains are disjoint.
package signals

import (
	"context"
	"time"

	"github.com/dunskii/consult-relay/internal/models"
)

// Store is the relay's mailbox. Per target peer, Drain returns signals in
// creation order; across targets there is no ordering guarantee.
type Store interface {
	// Append enqueues a signal for its target peer in the given room.
	Append(ctx context.Context, roomID string, sig models.Signal) error
	// Drain removes and returns every pending signal addressed to the peer,
	// oldest first. An empty result is not an error.
	Drain(ctx context.Context, roomID, peerID string) ([]models.Signal, error)
	// DropRoom discards every queue belonging to the room.
	DropRoom(ctx context.Context, roomID string) error
	// Sweep discards undelivered signals older than maxAge (abandoned
	// sessions). Implementations backed by key TTLs may make this a no-op.
	Sweep(ctx context.Context, maxAge time.Duration) error
}
