package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize  = 512
	sendBufferSize  = 256
	replyBufferSize = 16
)

// Client is one websocket subscriber.
type Client struct {
	ID   string
	Send chan ServerMessage

	// replies carries responses to client messages; unlike Send the hub
	// never closes it.
	replies chan ServerMessage

	conn *websocket.Conn
	hub  *Hub
	log  *logrus.Entry

	streamsMu sync.RWMutex
	streams   map[string]bool

	connectedAt time.Time
}

// NewClient creates a client following every stream.
func NewClient(id string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:          id,
		Send:        make(chan ServerMessage, sendBufferSize),
		replies:     make(chan ServerMessage, replyBufferSize),
		conn:        conn,
		hub:         hub,
		log:         hub.log.WithField("client_id", id),
		connectedAt: time.Now(),
	}
}

// ReadPump handles subscription messages until the connection closes.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for ctx.Err() == nil {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("unexpected close")
			}
			return
		}
		c.handleClientMessage(msg)
	}
}

// WritePump writes queued messages and keepalive pings to the connection.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.WithError(err).Debug("write failed")
				return
			}

		case msg := <-c.replies:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.WithError(err).Debug("write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues msg without blocking and reports whether it fit.
func (c *Client) TrySend(msg ServerMessage) bool {
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

// Follows reports whether the client is subscribed to stream.
func (c *Client) Follows(stream string) bool {
	c.streamsMu.RLock()
	defer c.streamsMu.RUnlock()
	return len(c.streams) == 0 || c.streams[stream]
}

func (c *Client) reply(msg ServerMessage) {
	select {
	case c.replies <- msg:
	default:
	}
}

func (c *Client) subscribe(streams []string) {
	c.streamsMu.Lock()
	defer c.streamsMu.Unlock()
	if len(streams) == 0 {
		c.streams = nil
		return
	}
	c.streams = make(map[string]bool, len(streams))
	for _, s := range streams {
		c.streams[s] = true
	}
}

func (c *Client) handleClientMessage(msg ClientMessage) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.subscribe(msg.Streams)
		c.log.WithField("streams", msg.Streams).Debug("subscribed")
		c.reply(newServerMessage(MessageTypeSubscribed, "", map[string]any{"streams": msg.Streams}))
	case MessageTypeUnsubscribe:
		c.subscribe(nil)
		c.reply(newServerMessage(MessageTypeSubscribed, "", map[string]any{"streams": []string{}}))
	case MessageTypeHeartbeat:
		c.reply(newServerMessage(MessageTypeHeartbeat, "", map[string]any{
			"client_id":    c.ID,
			"connected_at": c.connectedAt,
		}))
	default:
		c.reply(newServerMessage(MessageTypeError, "", ErrorMessage{
			Code:    "unknown_message_type",
			Message: fmt.Sprintf("unknown message type: %s", msg.Type),
		}))
	}
}
