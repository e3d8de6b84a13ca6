package realtime

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Broadcaster serializes an envelope once and pushes the bytes to
// every connection in the target channel's bucket plus the global
// bucket. Delivery is best-effort: closed or lagging connections are
// skipped, never force-removed mid-broadcast (the registry's
// close/error hook does the real cleanup), and a failed broadcast
// never fails the operation that triggered it.
type Broadcaster struct {
	registry *Registry
	relay    *Relay
	logger   *zap.Logger
}

// NewBroadcaster wires a broadcaster to a registry. relay may be nil:
// with a relay, envelopes are published through redis and delivered by
// every process's subscriber (including this one); without, delivery
// is direct and single-process.
func NewBroadcaster(registry *Registry, relay *Relay, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, relay: relay, logger: logger}
}

// ToChannel broadcasts an envelope to a channel's listeners and the
// global listeners.
func (b *Broadcaster) ToChannel(ctx context.Context, channelID int64, envelope Envelope) {
	data, err := json.Marshal(envelope)
	if err != nil {
		b.logger.Error("marshal envelope", zap.Error(err), zap.String("event", string(envelope.Event)))
		return
	}
	key := BucketKey(channelID)

	if b.relay != nil {
		err := b.relay.Publish(ctx, key, data)
		if err == nil {
			return
		}
		// Relay down: fall back to local delivery so this process's
		// own listeners still hear about the event.
		b.logger.Warn("relay publish failed, delivering locally", zap.Error(err))
	}
	b.DeliverLocal(key, data)
}

// DeliverLocal fans pre-serialized bytes out to the channel bucket and
// the global bucket of this process's registry. The relay subscriber
// calls this for every published event.
func (b *Broadcaster) DeliverLocal(channelKey string, data []byte) {
	sent := b.deliverBucket(channelKey, data)
	sent += b.deliverBucket(GlobalBucket, data)
	b.logger.Debug("broadcast delivered",
		zap.String("channel_key", channelKey),
		zap.Int("recipients", sent),
	)
}

func (b *Broadcaster) deliverBucket(key string, data []byte) int {
	sent := 0
	for _, client := range b.registry.Snapshot(key) {
		if client.Enqueue(data) {
			sent++
		}
	}
	return sent
}
