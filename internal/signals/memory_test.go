package signals_test

import (
	"context"
	"testing"
	"time"

	"github.com/dunskii/consult-relay/internal/models"
	"github.com/dunskii/consult-relay/internal/signals"
)

func appendSignal(t *testing.T, store signals.Store, roomID, from, target string, st models.SignalType) {
	t.Helper()
	err := store.Append(context.Background(), roomID, models.Signal{
		From:   from,
		Target: target,
		Type:   st,
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
}

func TestDrainReturnsCreationOrderPerTarget(t *testing.T) {
	store := signals.NewMemoryStore(nil)
	ctx := context.Background()

	appendSignal(t, store, "room", "b", "a", models.SignalTypeOffer)
	appendSignal(t, store, "room", "a", "b", models.SignalTypeAnswer)
	appendSignal(t, store, "room", "b", "a", models.SignalTypeCandidate)
	appendSignal(t, store, "room", "b", "a", models.SignalTypeCandidate)

	got, err := store.Drain(ctx, "room", "a")
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	want := []models.SignalType{models.SignalTypeOffer, models.SignalTypeCandidate, models.SignalTypeCandidate}
	if len(got) != len(want) {
		t.Fatalf("expected %d signals, got %d", len(want), len(got))
	}
	for i, sig := range got {
		if sig.Type != want[i] {
			t.Fatalf("signal %d: got %q, want %q", i, sig.Type, want[i])
		}
		if sig.From != "b" {
			t.Fatalf("signal %d: unexpected sender %q", i, sig.From)
		}
	}

	// b's queue is untouched.
	bSignals, err := store.Drain(ctx, "room", "b")
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(bSignals) != 1 || bSignals[0].Type != models.SignalTypeAnswer {
		t.Fatalf("unexpected signals for b: %#v", bSignals)
	}
}

func TestConsecutiveDrainsAreDisjoint(t *testing.T) {
	store := signals.NewMemoryStore(nil)
	ctx := context.Background()

	appendSignal(t, store, "room", "b", "a", models.SignalTypeOffer)

	first, err := store.Drain(ctx, "room", "a")
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(first))
	}

	second, err := store.Drain(ctx, "room", "a")
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("second drain must be empty, got %d signals", len(second))
	}
}

func TestDropRoomDiscardsQueues(t *testing.T) {
	store := signals.NewMemoryStore(nil)
	ctx := context.Background()

	appendSignal(t, store, "room", "b", "a", models.SignalTypeOffer)
	if err := store.DropRoom(ctx, "room"); err != nil {
		t.Fatalf("DropRoom failed: %v", err)
	}

	got, err := store.Drain(ctx, "room", "a")
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty queue after drop, got %d signals", len(got))
	}
}

func TestSweepDiscardsAbandonedSignals(t *testing.T) {
	store := signals.NewMemoryStore(nil)
	ctx := context.Background()

	stale := models.Signal{
		From:      "b",
		Target:    "a",
		Type:      models.SignalTypeOffer,
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	if err := store.Append(ctx, "room", stale); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	appendSignal(t, store, "room", "b", "a", models.SignalTypeCandidate)

	if err := store.Sweep(ctx, time.Hour); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	got, err := store.Drain(ctx, "room", "a")
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(got) != 1 || got[0].Type != models.SignalTypeCandidate {
		t.Fatalf("expected only the fresh signal to survive, got %#v", got)
	}
}

func TestHubNotifiesSubscriberOnAppend(t *testing.T) {
	hub := signals.NewHub()
	store := signals.NewMemoryStore(hub)

	notify, cancel := hub.Subscribe("room", "a")
	defer cancel()

	appendSignal(t, store, "room", "b", "a", models.SignalTypeOffer)

	select {
	case <-notify:
	case <-time.After(time.Second):
		t.Fatal("expected a notification after append")
	}

	// Appends to other peers stay silent for this subscriber.
	appendSignal(t, store, "room", "a", "b", models.SignalTypeAnswer)
	select {
	case <-notify:
		t.Fatal("unexpected notification for another peer's signal")
	default:
	}
}
