package websocket

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	// keep-alive pings go out before the peer's idle timeout runs out
	pingInterval   = idleTimeout * 9 / 10
	maxInboundSize = 1024
	sendQueueSize  = 256
)

// controlMessage is the only frame clients send: it changes which entities
// the connection receives events for
//
//	{"action":"subscribe","entities":["loan","payment"]}
type controlMessage struct {
	Action   string   `json:"action"`
	Entities []string `json:"entities"`
}

// controlReply acknowledges a control message with the resulting subscription
type controlReply struct {
	Type     string       `json:"type"`
	Entities []EntityType `json:"entities,omitempty"`
	Error    string       `json:"error,omitempty"`
}

var _ ClientInterface = (*Client)(nil)

// Client is one staff browser tab connected to the office feed
type Client struct {
	id      string
	staffID string
	conn    *websocket.Conn
	hub     *Hub
	subs    *subscription

	mu     sync.RWMutex
	queue  chan []byte
	closed bool
	once   sync.Once
}

// NewClient wraps an upgraded connection. Without entities the client
// receives every event.
func NewClient(conn *websocket.Conn, staffID string, hub *Hub, entities ...EntityType) *Client {
	return &Client{
		id:      uuid.NewString(),
		staffID: staffID,
		conn:    conn,
		hub:     hub,
		subs:    newSubscription(entities),
		queue:   make(chan []byte, sendQueueSize),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) StaffID() string { return c.staffID }

// Wants reports whether events about entity should reach this client
func (c *Client) Wants(entity EntityType) bool { return c.subs.wants(entity) }

// Send queues data without blocking. A full queue means the tab stopped
// reading and the message is dropped.
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.queue <- data:
		return nil
	default:
		return ErrClientBehind
	}
}

// Close is idempotent
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.queue)
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// Run serves the connection until either side goes away, then removes the
// client from the hub
func (c *Client) Run() {
	go c.writeLoop()
	c.readLoop()
}

func (c *Client) readLoop() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("client_id", c.id).Str("staff_id", c.staffID).Msg("WebSocket closed unexpectedly")
			}
			return
		}
		c.handleControl(data)
	}
}

func (c *Client) handleControl(data []byte) {
	reply := c.applyControl(data)
	out, err := json.Marshal(reply)
	if err != nil {
		return
	}
	if err := c.Send(out); err != nil {
		log.Debug().Err(err).Str("client_id", c.id).Msg("Dropped control reply")
	}
}

func (c *Client) applyControl(data []byte) controlReply {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return controlReply{Type: "error", Error: "malformed control message"}
	}
	entities, err := ParseEntities(strings.Join(msg.Entities, ","))
	if err != nil {
		return controlReply{Type: "error", Error: err.Error()}
	}

	switch msg.Action {
	case "subscribe":
		c.subs.add(entities)
	case "unsubscribe":
		c.subs.remove(entities)
	default:
		return controlReply{Type: "error", Error: "unknown action " + msg.Action}
	}
	return controlReply{Type: "subscribed", Entities: c.subs.list()}
}

func (c *Client) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case data, open := <-c.queue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !open {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("client_id", c.id).Str("staff_id", c.staffID).Msg("WebSocket write failed")
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
