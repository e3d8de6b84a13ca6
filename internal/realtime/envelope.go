package realtime

import "fmt"

// EventType tags an envelope on the wire.
type EventType string

const (
	EventMessageNew  EventType = "message:new"
	EventMessageRead EventType = "message:read"
	EventConnected   EventType = "connected"
	EventError       EventType = "error"
)

// Envelope is the wire structure pushed to clients. It is serialized
// exactly once per broadcast; every recipient sees the same bytes.
type Envelope struct {
	Event EventType `json:"event"`
	Data  any       `json:"data"`
}

// GlobalBucket is the distinguished bucket receiving every channel's
// events, used for cross-channel notification badges.
const GlobalBucket = "global"

// BucketKey returns the bucket key for a specific channel.
func BucketKey(channelID int64) string {
	return fmt.Sprintf("channel-%d", channelID)
}
