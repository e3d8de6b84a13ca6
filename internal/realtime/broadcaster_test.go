package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func waitForFrames(t *testing.T, fc *fakeConn, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return fc.textCount() >= want
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, fc.textCount())
}

func TestBroadcastReachesChannelAndGlobal(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	b := NewBroadcaster(r, nil, zap.NewNop())

	inChannel, inChannelConn := newTestClient(t)
	global, globalConn := newTestClient(t)
	elsewhere, elsewhereConn := newTestClient(t)

	r.Join(inChannel, BucketKey(7))
	r.Join(global, GlobalBucket)
	r.Join(elsewhere, BucketKey(8))

	b.ToChannel(context.Background(), 7, Envelope{Event: EventMessageNew, Data: map[string]any{"id": 1}})

	waitForFrames(t, inChannelConn, 1)
	waitForFrames(t, globalConn, 1)

	// The other channel's listener must hear nothing.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, elsewhereConn.textCount())

	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	inChannelConn.mu.Lock()
	frame := inChannelConn.texts[0]
	inChannelConn.mu.Unlock()
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, string(EventMessageNew), env.Event)
}

func TestBroadcastDeliversOncePerConnection(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	b := NewBroadcaster(r, nil, zap.NewNop())

	global, globalConn := newTestClient(t)
	r.Join(global, GlobalBucket)

	b.ToChannel(context.Background(), 42, Envelope{Event: EventMessageRead, Data: nil})

	waitForFrames(t, globalConn, 1)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, globalConn.textCount(), "global listener must not see duplicates")
}

func TestBroadcastSkipsClosedConnections(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	b := NewBroadcaster(r, nil, zap.NewNop())

	alive, aliveConn := newTestClient(t)
	dead, deadConn := newTestClient(t)
	r.Join(alive, BucketKey(7))
	r.Join(dead, BucketKey(7))
	dead.Close()

	b.ToChannel(context.Background(), 7, Envelope{Event: EventMessageNew, Data: "x"})

	waitForFrames(t, aliveConn, 1)
	assert.Equal(t, 0, deadConn.textCount())
}
