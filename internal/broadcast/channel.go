package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	// sendBuffer is the per-channel outbound queue depth. A client that
	// cannot drain this is disconnected rather than allowed to block a
	// broadcast.
	sendBuffer = 32

	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The preview frame is sandboxed and may carry a null origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSChannel is a connected reload client over a websocket. A single write
// pump goroutine owns the connection's write side; Send only enqueues.
type WSChannel struct {
	conn *websocket.Conn

	session *Session

	// out is the outbound broadcast queue drained by the write pump.
	out chan Broadcast

	// done signals both pumps to exit. Closed exactly once.
	done      chan struct{}
	closeOnce sync.Once
}

// ServeChannel upgrades an HTTP request to a websocket and runs the channel
// against the given session until the client goes away. It blocks for the
// lifetime of the connection.
//
// Parameters:
//   - w: The HTTP response writer
//   - r: The upgrade request
//   - session: The project session to attach to
//
// Returns:
//   - error: The upgrade error, if the handshake failed
func ServeChannel(w http.ResponseWriter, r *http.Request, session *Session) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	ch := &WSChannel{
		conn:    conn,
		session: session,
		out:     make(chan Broadcast, sendBuffer),
		done:    make(chan struct{}),
	}

	go ch.writePump()
	ch.readPump()
	return nil
}

// Send enqueues a broadcast for delivery. If the client's queue is full the
// channel is torn down; a reconnecting client will catch up through the
// stale-version check.
func (c *WSChannel) Send(b Broadcast) {
	select {
	case c.out <- b:
	case <-c.done:
	default:
		log.Debug("channel send queue full, dropping client", "project", c.session.ProjectID)
		c.close()
	}
}

// readPump reads client messages until the connection dies. The first
// hmr-connect message registers the channel with the session; pings are
// answered with pongs carrying the current version so idle clients can
// detect staleness.
func (c *WSChannel) readPump() {
	defer func() {
		c.session.Disconnect(c)
		c.close()
		_ = c.conn.Close()
	}()

	registered := false
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// One corrupt frame should not kill the channel.
			continue
		}

		switch msg.Kind {
		case KindConnect:
			if !registered {
				registered = true
				c.session.Connect(c, msg.LastSeenVersion)
			}
		case KindPing:
			c.Send(Broadcast{Kind: KindPong, Version: c.session.Version()})
		}
	}
}

// writePump is the single writer for the connection.
func (c *WSChannel) writePump() {
	defer func() { _ = c.conn.Close() }()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		case b := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, b.Encode()); err != nil {
				return
			}
		}
	}
}

// close signals both pumps to exit. Safe to call multiple times.
func (c *WSChannel) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
