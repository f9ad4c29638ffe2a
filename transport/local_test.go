package transport

import (
	"context"
	"testing"
	"time"

	"github.com/nvsync/cachesync/types"
)

func TestLocalTransportIsStandalone(t *testing.T) {
	tr := NewLocalTransport()
	defer tr.Close()

	if tr.IsAvailable() {
		t.Fatal("Local transport should report unavailable")
	}
	if err := tr.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	delivered := false
	tr.OnEvent(func(event types.EvictionEvent) { delivered = true })

	if err := tr.Broadcast(context.Background(), types.NewEvictionEvent("User", "1", "users", types.OpUpdate)); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}
	if delivered {
		t.Fatal("Local transport should never deliver")
	}
}

func TestChannelTransportLoopsBack(t *testing.T) {
	tr := NewChannelTransport()
	defer tr.Close()

	received := make(chan types.EvictionEvent, 1)
	tr.OnEvent(func(event types.EvictionEvent) { received <- event })

	if err := tr.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	event := types.NewEvictionEvent("User", "1", "users", types.OpUpdate).WithOrigin("node-1")
	if err := tr.Broadcast(context.Background(), event); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	select {
	case got := <-received:
		if got.EventID != event.EventID {
			t.Fatalf("Expected event %q, got %q", event.EventID, got.EventID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast should loop back to the sender's handlers")
	}
}

func TestChannelTransportDeliversToLinkedPeers(t *testing.T) {
	a := NewChannelTransport()
	b := NewChannelTransport()
	defer a.Close()
	defer b.Close()

	a.Link(b)

	received := make(chan types.EvictionEvent, 1)
	b.OnEvent(func(event types.EvictionEvent) { received <- event })

	if err := a.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe a failed: %v", err)
	}
	if err := b.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe b failed: %v", err)
	}

	event := types.NewEvictionEvent("User", "1", "users", types.OpDelete)
	if err := a.Broadcast(context.Background(), event); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	select {
	case got := <-received:
		if got.EventID != event.EventID {
			t.Fatalf("Expected event %q, got %q", event.EventID, got.EventID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Linked peer should receive the broadcast")
	}
}

func TestChannelTransportClosedBroadcastFails(t *testing.T) {
	tr := NewChannelTransport()
	tr.Close()

	if tr.IsAvailable() {
		t.Fatal("Closed transport should report unavailable")
	}
	err := tr.Broadcast(context.Background(), types.NewEvictionEvent("User", "1", "users", types.OpUpdate))
	if err == nil {
		t.Fatal("Broadcast on closed transport should fail")
	}
}
