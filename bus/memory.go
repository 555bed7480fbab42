// bus/memory.go
package bus

import (
	"context"
	"sync"

	"github.com/wfunc/worldserver/network"
)

// Hub is an in-process bus shared by several MemoryBus instances. It mirrors
// the Redis semantics closely enough for tests and single-node development:
// publishes are delivered to every subscriber (including the publisher, so
// self-echo suppression stays exercised), per-subscriber order is preserved,
// and the snapshot slot is last-writer-wins.
type Hub struct {
	mutex    sync.RWMutex
	members  map[string]*MemoryBus
	snapshot []byte
	hasSnap  bool
}

func NewHub() *Hub {
	return &Hub{members: make(map[string]*MemoryBus)}
}

// Bus creates the hub endpoint for one instance.
func (h *Hub) Bus(instanceID string) *MemoryBus {
	b := &MemoryBus{
		hub:        h,
		instanceID: instanceID,
		inbox:      make(chan *network.Envelope, 256),
		done:       make(chan struct{}),
	}
	h.mutex.Lock()
	h.members[instanceID] = b
	h.mutex.Unlock()
	return b
}

type MemoryBus struct {
	hub        *Hub
	instanceID string
	inbox      chan *network.Envelope
	done       chan struct{}
	closeOnce  sync.Once
}

func (b *MemoryBus) Publish(ctx context.Context, env *network.Envelope) error {
	b.hub.mutex.RLock()
	defer b.hub.mutex.RUnlock()

	for _, m := range b.hub.members {
		m.deliver(env)
	}
	return nil
}

func (b *MemoryBus) SendDirect(ctx context.Context, instanceID string, env *network.Envelope) error {
	b.hub.mutex.RLock()
	defer b.hub.mutex.RUnlock()

	if m, ok := b.hub.members[instanceID]; ok {
		m.deliver(env)
	}
	return nil
}

// deliver drops on a full inbox, matching the fire-and-forget contract.
func (b *MemoryBus) deliver(env *network.Envelope) {
	select {
	case <-b.done:
	case b.inbox <- env:
	default:
	}
}

func (b *MemoryBus) Subscribe(ctx context.Context, handler Handler) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				return
			case env := <-b.inbox:
				handler(env)
			}
		}
	}()
	return nil
}

func (b *MemoryBus) SetSnapshot(ctx context.Context, blob []byte) error {
	b.hub.mutex.Lock()
	defer b.hub.mutex.Unlock()
	b.hub.snapshot = append([]byte(nil), blob...)
	b.hub.hasSnap = true
	return nil
}

func (b *MemoryBus) GetSnapshot(ctx context.Context) ([]byte, bool, error) {
	b.hub.mutex.RLock()
	defer b.hub.mutex.RUnlock()
	if !b.hub.hasSnap {
		return nil, false, nil
	}
	return append([]byte(nil), b.hub.snapshot...), true, nil
}

func (b *MemoryBus) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		b.hub.mutex.Lock()
		delete(b.hub.members, b.instanceID)
		b.hub.mutex.Unlock()
	})
	return nil
}
