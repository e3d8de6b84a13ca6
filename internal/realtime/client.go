package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeDeadline  = 5 * time.Second
	pingInterval   = 30 * time.Second
	sendBufferSize = 16
)

// conn is the slice of *websocket.Conn the client needs; narrowed so
// tests can substitute a fake transport.
type conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client connection states.
const (
	stateOpen int32 = iota
	stateClosing
	stateClosed
)

// Client is one live connection. A single writer goroutine owns all
// writes to the underlying transport; Enqueue hands it frames through
// a buffered channel and never blocks the caller.
type Client struct {
	UserID uuid.UUID

	conn      conn
	send      chan []byte
	done      chan struct{}
	state     atomic.Int32
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewClient(userID uuid.UUID, c conn) *Client {
	client := &Client{
		UserID: userID,
		conn:   c,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
	client.wg.Add(1)
	go client.writeLoop()
	return client
}

// Enqueue queues a pre-serialized frame for delivery. Returns false,
// not an error, when the client is closed or its buffer is full;
// liveness is advisory and real cleanup happens via the registry.
func (c *Client) Enqueue(data []byte) bool {
	if c.state.Load() != stateOpen {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Open reports whether the client still accepts frames.
func (c *Client) Open() bool {
	return c.state.Load() == stateOpen
}

// Close tears the connection down. Safe to call any number of times,
// from any goroutine; the transport's close and error paths both
// funnel here.
func (c *Client) Close() {
	c.shutdown(0, "")
}

// CloseWithCode stops the writer, sends a close frame with a status
// code, then tears down. Used for server-initiated closes (shutdown).
func (c *Client) CloseWithCode(code int, reason string) {
	c.shutdown(code, reason)
}

func (c *Client) shutdown(code int, reason string) {
	c.closeOnce.Do(func() {
		c.state.Store(stateClosing)
		close(c.done)
		// The writer goroutine must exit before anyone else touches
		// the transport: gorilla forbids concurrent writes.
		c.wg.Wait()
		if code != 0 {
			msg := websocket.FormatCloseMessage(code, reason)
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
		}
		_ = c.conn.Close()
		c.state.Store(stateClosed)
	})
}

func (c *Client) writeLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.state.Store(stateClosed)
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.state.Store(stateClosed)
				_ = c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
