// bus/redis.go
package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wfunc/worldserver/config"
	"github.com/wfunc/worldserver/network"
)

const worldEventChannel = "world-events"

// DirectChannel names one instance's private topic.
func DirectChannel(instanceID string) string {
	return "instance-events:" + instanceID
}

// RedisBus carries world events over Redis pub/sub and keeps the presence
// snapshot in a plain key. Separate clients for publish and subscribe, since
// a subscribed Redis connection cannot issue other commands.
type RedisBus struct {
	instanceID  string
	snapshotKey string
	pub         *redis.Client
	sub         *redis.Client
	pubsub      *redis.PubSub
	onError     ErrorHandler
}

func NewRedisBus(cfg config.RedisConfig, instanceID string, onError ErrorHandler) (*RedisBus, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address not provided")
	}
	if onError == nil {
		onError = func(error) {}
	}

	opts := &redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
	}

	return &RedisBus{
		instanceID:  instanceID,
		snapshotKey: cfg.SnapshotKey,
		pub:         redis.NewClient(opts),
		sub:         redis.NewClient(opts),
		onError:     onError,
	}, nil
}

func (b *RedisBus) Publish(ctx context.Context, env *network.Envelope) error {
	return b.publishTo(ctx, worldEventChannel, env)
}

func (b *RedisBus) SendDirect(ctx context.Context, instanceID string, env *network.Envelope) error {
	return b.publishTo(ctx, DirectChannel(instanceID), env)
}

func (b *RedisBus) publishTo(ctx context.Context, channel string, env *network.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.pub.Publish(ctx, channel, data).Err()
}

// Subscribe listens on the world channel and this instance's direct channel.
// go-redis re-establishes the subscription itself after connection loss; the
// receive loop reports errors and keeps going until ctx is cancelled.
func (b *RedisBus) Subscribe(ctx context.Context, handler Handler) error {
	b.pubsub = b.sub.Subscribe(ctx, worldEventChannel, DirectChannel(b.instanceID))

	// Force the initial subscription so a dead broker surfaces through the
	// error handler immediately rather than on first publish.
	if _, err := b.pubsub.Receive(ctx); err != nil {
		b.onError(err)
	}

	ch := b.pubsub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env network.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.onError(fmt.Errorf("bus: bad envelope on %s: %w", msg.Channel, err))
					continue
				}
				handler(&env)
			}
		}
	}()
	return nil
}

func (b *RedisBus) SetSnapshot(ctx context.Context, blob []byte) error {
	return b.pub.Set(ctx, b.snapshotKey, blob, 0).Err()
}

func (b *RedisBus) GetSnapshot(ctx context.Context) ([]byte, bool, error) {
	blob, err := b.pub.Get(ctx, b.snapshotKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

func (b *RedisBus) Close() error {
	if b.pubsub != nil {
		b.pubsub.Close()
	}
	b.sub.Close()
	return b.pub.Close()
}
