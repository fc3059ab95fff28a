package feed

import (
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/farmlink/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// ClientMessage is what a client may send
type ClientMessage struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

type client struct {
	hub        *Hub
	conn       *websocket.Conn
	remoteAddr string
	send       chan []byte
}

// serve runs a registered connection until either side closes it
func (c *client) serve() {
	go c.writePump()
	c.readPump()
}

// readPump handles client commands. It owns the connection's read side and
// unregisters the client when the connection drops.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Info("Feed connection closed unexpectedly",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}

		var msg ClientMessage
		if err := jsonAPI.Unmarshal(data, &msg); err != nil {
			logging.Warn("Ignoring malformed feed message",
				zap.String("remote_addr", c.remoteAddr),
				zap.Error(err),
			)
			continue
		}

		switch msg.Type {
		case "command":
			c.hub.command(c, strings.TrimSpace(msg.Command))
		default:
			logging.Debug("Ignoring feed message",
				zap.String("remote_addr", c.remoteAddr),
				zap.String("type", msg.Type),
			)
		}
	}
}

// writePump delivers queued events and keeps the connection alive with pings
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the queue
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logging.Debug("Feed write failed",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
