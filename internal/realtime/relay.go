package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// relayTopic is the redis pub/sub channel every process subscribes to.
const relayTopic = "realtime:events"

type relayMessage struct {
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload"`
}

// Relay bridges broadcasts across processes over redis pub/sub. Each
// process publishes events instead of delivering directly; each
// process's subscriber delivers to its local registry. One registry
// per process stays the only holder of live connections.
type Relay struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRelay(client *redis.Client, logger *zap.Logger) *Relay {
	return &Relay{client: client, logger: logger}
}

// Publish sends a serialized envelope for a bucket key to all
// subscribed processes.
func (r *Relay) Publish(ctx context.Context, channelKey string, payload []byte) error {
	msg, err := json.Marshal(relayMessage{Key: channelKey, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal relay message: %w", err)
	}
	if err := r.client.Publish(ctx, relayTopic, msg).Err(); err != nil {
		return fmt.Errorf("publish relay message: %w", err)
	}
	return nil
}

// Run subscribes and feeds every received event to deliver. Blocks
// until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, deliver func(channelKey string, payload []byte)) {
	pubsub := r.client.Subscribe(ctx, relayTopic)
	defer func() {
		_ = pubsub.Close()
	}()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var rm relayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &rm); err != nil {
				r.logger.Warn("malformed relay message", zap.Error(err))
				continue
			}
			deliver(rm.Key, rm.Payload)
		case <-ctx.Done():
			return
		}
	}
}
