package websocket

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"wedding-chat/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendQueueSize  = 256
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendQueueFull    = errors.New("send queue full")
)

// Client is one authenticated socket. The identity is fixed at upgrade time.
type Client struct {
	id           string
	identity     services.Identity
	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	connectedAt  time.Time
	lastActivity atomic.Int64
	logger       *WebSocketLogger
}

func NewClient(conn *websocket.Conn, identity services.Identity, logger *WebSocketLogger) *Client {
	c := &Client{
		id:          uuid.NewString(),
		identity:    identity,
		conn:        conn,
		send:        make(chan []byte, sendQueueSize),
		done:        make(chan struct{}),
		connectedAt: time.Now(),
		logger:      logger,
	}
	c.touch()
	return c
}

func (c *Client) ID() string                  { return c.id }
func (c *Client) UserID() uuid.UUID           { return c.identity.UserID }
func (c *Client) Identity() services.Identity { return c.identity }

// Send never blocks; a full queue drops the frame.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrSendQueueFull
	}
}

// Close stops the write loop, which closes the socket and with it the read loop.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *Client) idleFor() time.Duration {
	return time.Since(time.Unix(0, c.lastActivity.Load()))
}

// readPump feeds inbound frames to handle until the socket fails, then calls
// onClose exactly once.
func (c *Client) readPump(handle func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		onClose(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("unexpected_close", c.UserID(), c.id, err)
			}
			return
		}
		c.touch()
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		handle(c, message)
	}
}

// writePump is the only writer on the socket, so frames leave in queue order.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
			if c.idleFor() > pongWait*2 {
				c.logger.Info("idle_timeout", c.UserID(), c.id)
				c.Close()
				return
			}
		}
	}
}
