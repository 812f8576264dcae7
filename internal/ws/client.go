package ws

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Mascaro101/Echo-backend/internal/chat"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024 // 64KB for ciphertext payloads
)

// Client is a single live connection. Its uuid handle is what the session
// directory stores, so disconnect cleanup can find the entry by reverse
// lookup without knowing the user.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan chat.Event
	done chan struct{}

	closeOnce sync.Once
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan chat.Event, 256),
		done: make(chan struct{}),
	}
}

// ID returns the connection handle identifier.
func (c *Client) ID() string { return c.id }

// Send queues an event without blocking. A client whose buffer is full is
// too far behind to catch up, so its connection is closed instead.
func (c *Client) Send(ev chat.Event) {
	select {
	case <-c.done:
		return
	case c.send <- ev:
	default:
		log.Printf("[WebSocket] Client %s send buffer full, dropping connection", c.id)
		c.close()
	}
}

// close signals shutdown exactly once. The send channel itself is never
// closed, so concurrent Sends from the relay can never panic.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with periodic pings. Runs in its own goroutine per client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
