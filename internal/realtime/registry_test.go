package realtime

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeConn is an in-memory transport capturing text frames.
type fakeConn struct {
	mu     sync.Mutex
	texts  [][]byte
	closed bool
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("connection closed")
	}
	if messageType == websocket.TextMessage {
		cp := make([]byte, len(data))
		copy(cp, data)
		f.texts = append(f.texts, cp)
	}
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) textCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

func newTestClient(t *testing.T) (*Client, *fakeConn) {
	t.Helper()
	fc := &fakeConn{}
	c := NewClient(uuid.New(), fc)
	t.Cleanup(c.Close)
	return c, fc
}

func TestRegistryJoinLeave(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	c1, _ := newTestClient(t)
	c2, _ := newTestClient(t)

	r.Join(c1, BucketKey(1))
	r.Join(c2, BucketKey(1))
	assert.Equal(t, 2, r.Len(BucketKey(1)))

	r.Leave(c1)
	assert.Equal(t, 1, r.Len(BucketKey(1)))

	r.Leave(c2)
	assert.Equal(t, 0, r.Len(BucketKey(1)))
	assert.Empty(t, r.Snapshot(BucketKey(1)))
}

func TestRegistryJoinIsExclusive(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	c, _ := newTestClient(t)

	r.Join(c, BucketKey(1))
	r.Join(c, BucketKey(2))

	assert.Equal(t, 1, r.Len(BucketKey(1)), "second join must not move the client")
	assert.Equal(t, 0, r.Len(BucketKey(2)))
}

func TestRegistryLeaveIdempotent(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	c, _ := newTestClient(t)

	r.Join(c, GlobalBucket)
	r.Leave(c)
	require.NotPanics(t, func() { r.Leave(c) })
	assert.Equal(t, 0, r.Len(GlobalBucket))
}

func TestRegistryLeaveUnknownClient(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	c, _ := newTestClient(t)
	require.NotPanics(t, func() { r.Leave(c) })
}

func TestRegistryCloseAll(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	c1, fc1 := newTestClient(t)
	c2, fc2 := newTestClient(t)
	r.Join(c1, BucketKey(3))
	r.Join(c2, GlobalBucket)

	r.CloseAll()

	assert.Equal(t, 0, r.Len(BucketKey(3)))
	assert.Equal(t, 0, r.Len(GlobalBucket))
	assert.False(t, c1.Open())
	assert.False(t, c2.Open())

	fc1.mu.Lock()
	assert.True(t, fc1.closed)
	fc1.mu.Unlock()
	fc2.mu.Lock()
	assert.True(t, fc2.closed)
	fc2.mu.Unlock()
}
