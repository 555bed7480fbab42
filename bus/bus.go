// bus/bus.go
package bus

import (
	"context"

	"github.com/wfunc/worldserver/network"
)

// Handler receives one delivered envelope. Order is preserved per-channel
// per-publisher, not across publishers.
type Handler func(env *network.Envelope)

// ErrorHandler receives connectivity and decode errors. They are non-fatal;
// the adapter keeps retrying in the background.
type ErrorHandler func(err error)

// Bus is the publish/subscribe channel shared by all server instances, plus
// one key-value slot for the presence snapshot.
//
// Publish is fire-and-forget: a failed publish is logged and dropped, never
// queued, because stale presence is an acceptable trade-off for liveness.
type Bus interface {
	Publish(ctx context.Context, env *network.Envelope) error
	SendDirect(ctx context.Context, instanceID string, env *network.Envelope) error
	Subscribe(ctx context.Context, handler Handler) error
	SetSnapshot(ctx context.Context, blob []byte) error
	GetSnapshot(ctx context.Context) ([]byte, bool, error)
	Close() error
}
