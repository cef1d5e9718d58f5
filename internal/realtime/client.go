package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one live agent connection. Its event channel is a single FIFO
// queue, which preserves per-conversation publish order.
type Client struct {
	ID       string
	TenantID string

	send      chan Event
	closeOnce sync.Once
}

func newClient(id, tenantID string, buffer int) *Client {
	return &Client{
		ID:       id,
		TenantID: tenantID,
		send:     make(chan Event, buffer),
	}
}

// Events exposes the client's ordered event stream.
func (c *Client) Events() <-chan Event {
	return c.send
}

// deliver enqueues without blocking. Returns false when the buffer is full.
func (c *Client) deliver(event Event) (ok bool) {
	defer func() {
		// Losing a race with closeSend is a missed event, not a crash.
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// ServeConn pumps the client's events onto a websocket connection until the
// peer disconnects or the hub unregisters the client. It blocks; the caller
// runs it on the connection's goroutine.
func (c *Client) ServeConn(conn *websocket.Conn, log zerolog.Logger) {
	done := make(chan struct{})

	// Read loop: the agent UI sends nothing but close/pong frames.
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case event, open := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !open {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
