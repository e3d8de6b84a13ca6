package realtime

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Registry tracks which live connections belong to which bucket. The
// tag table (client → bucket key) is the single source of truth for
// cleanup: Leave never scans buckets, it looks the client's own tag up
// and removes exactly that membership. A client belongs to at most one
// bucket.
type Registry struct {
	mu      sync.RWMutex
	buckets map[string]map[*Client]struct{}
	tags    map[*Client]string
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		buckets: make(map[string]map[*Client]struct{}),
		tags:    make(map[*Client]string),
		logger:  logger,
	}
}

// Join registers the client into the bucket for channelKey. Joining an
// already-registered client is a no-op: a connection is never in two
// buckets.
func (r *Registry) Join(c *Client, channelKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, registered := r.tags[c]; registered {
		return
	}

	bucket, ok := r.buckets[channelKey]
	if !ok {
		bucket = make(map[*Client]struct{})
		r.buckets[channelKey] = bucket
	}
	bucket[c] = struct{}{}
	r.tags[c] = channelKey

	r.logger.Debug("connection joined",
		zap.String("channel_key", channelKey),
		zap.String("user_id", c.UserID.String()),
		zap.Int("bucket_size", len(bucket)),
	)
}

// Leave removes the client from its bucket, pruning the bucket when it
// empties. Idempotent: both the close and the error transport events
// can fire for the same connection, so a second Leave is a no-op.
func (r *Registry) Leave(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	channelKey, registered := r.tags[c]
	if !registered {
		return
	}
	delete(r.tags, c)

	bucket, ok := r.buckets[channelKey]
	if !ok {
		return
	}
	delete(bucket, c)
	if len(bucket) == 0 {
		delete(r.buckets, channelKey)
	}

	r.logger.Debug("connection left",
		zap.String("channel_key", channelKey),
		zap.String("user_id", c.UserID.String()),
	)
}

// Snapshot returns a copy of the bucket's members, so callers can fan
// out without holding the lock or mutating the set being iterated.
func (r *Registry) Snapshot(channelKey string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.buckets[channelKey]
	if len(bucket) == 0 {
		return nil
	}
	clients := make([]*Client, 0, len(bucket))
	for c := range bucket {
		clients = append(clients, c)
	}
	return clients
}

// Len reports the bucket's current size. Zero means the bucket entry
// does not exist at all.
func (r *Registry) Len(channelKey string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buckets[channelKey])
}

// CloseAll closes every live connection and clears the registry. Called
// once at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.tags))
	for c := range r.tags {
		clients = append(clients, c)
	}
	r.buckets = make(map[string]map[*Client]struct{})
	r.tags = make(map[*Client]string)
	r.mu.Unlock()

	for _, c := range clients {
		c.CloseWithCode(websocket.CloseGoingAway, "server shutting down")
	}
	if len(clients) > 0 {
		r.logger.Info("closed live connections", zap.Int("count", len(clients)))
	}
}
