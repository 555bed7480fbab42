package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/wfunc/worldserver/network"
)

func collect(t *testing.T, ctx context.Context, b *MemoryBus) chan *network.Envelope {
	t.Helper()
	out := make(chan *network.Envelope, 16)
	if err := b.Subscribe(ctx, func(env *network.Envelope) {
		out <- env
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	return out
}

func waitFor(t *testing.T, ch chan *network.Envelope) *network.Envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for envelope")
		return nil
	}
}

func TestHub_PublishReachesAllMembersIncludingPublisher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	a := hub.Bus("instance-a")
	b := hub.Bus("instance-b")
	defer a.Close()
	defer b.Close()

	chA := collect(t, ctx, a)
	chB := collect(t, ctx, b)

	env := &network.Envelope{Type: network.EventMove, Payload: json.RawMessage(`{}`), Origin: "instance-a"}
	if err := a.Publish(ctx, env); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// Like Redis pub/sub, the publisher's own subscription also receives the
	// message; echo suppression belongs to the router, not the bus.
	if got := waitFor(t, chA); got.Origin != "instance-a" {
		t.Errorf("Publisher should receive its own message, got origin %q", got.Origin)
	}
	if got := waitFor(t, chB); got.Type != network.EventMove {
		t.Errorf("Peer should receive the published message, got %s", got.Type)
	}
}

func TestHub_SendDirectTargetsOneInstance(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	a := hub.Bus("instance-a")
	b := hub.Bus("instance-b")
	c := hub.Bus("instance-c")
	defer a.Close()
	defer b.Close()
	defer c.Close()

	chB := collect(t, ctx, b)
	chC := collect(t, ctx, c)

	env := &network.Envelope{Type: network.EventBootstrapResponse, Payload: json.RawMessage(`{}`)}
	if err := a.SendDirect(ctx, "instance-b", env); err != nil {
		t.Fatalf("SendDirect failed: %v", err)
	}

	if got := waitFor(t, chB); got.Type != network.EventBootstrapResponse {
		t.Errorf("Target should receive the direct message, got %s", got.Type)
	}

	select {
	case env := <-chC:
		t.Errorf("Non-target instance received direct message %s", env.Type)
	case <-time.After(100 * time.Millisecond):
	}

	// Directs to unknown instances are dropped, not errors.
	if err := a.SendDirect(ctx, "instance-gone", env); err != nil {
		t.Errorf("SendDirect to an absent instance should not fail, got %v", err)
	}
}

func TestHub_SnapshotSlotIsLastWriterWins(t *testing.T) {
	ctx := context.Background()

	hub := NewHub()
	a := hub.Bus("instance-a")
	b := hub.Bus("instance-b")
	defer a.Close()
	defer b.Close()

	if _, ok, err := a.GetSnapshot(ctx); err != nil || ok {
		t.Fatalf("Empty slot should read as absent, got ok=%v err=%v", ok, err)
	}

	if err := a.SetSnapshot(ctx, []byte(`{"v":1}`)); err != nil {
		t.Fatalf("SetSnapshot failed: %v", err)
	}
	if err := b.SetSnapshot(ctx, []byte(`{"v":2}`)); err != nil {
		t.Fatalf("SetSnapshot failed: %v", err)
	}

	blob, ok, err := a.GetSnapshot(ctx)
	if err != nil || !ok {
		t.Fatalf("Snapshot should be present, got ok=%v err=%v", ok, err)
	}
	if string(blob) != `{"v":2}` {
		t.Errorf("Slot should hold the last write, got %s", blob)
	}
}
