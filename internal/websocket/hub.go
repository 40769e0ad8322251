package websocket

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

var (
	// ErrClientClosed is returned when sending to a connection that is gone
	ErrClientClosed = errors.New("client is closed")
	// ErrClientBehind is returned when a connection's send queue is full
	ErrClientBehind = errors.New("client send queue is full")
)

// ClientInterface is what the hub needs from a connection
type ClientInterface interface {
	ID() string
	StaffID() string
	Wants(entity EntityType) bool
	Send(data []byte) error
	Close() error
}

// Hub fans office events out to connected staff. It is safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]ClientInterface
	dropped atomic.Int64
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]ClientInterface)}
}

func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	h.clients[client.ID()] = client
	total := len(h.clients)
	h.mu.Unlock()

	log.Debug().Str("staff_id", client.StaffID()).Str("client_id", client.ID()).Int("connections", total).Msg("WebSocket client registered")
}

// Unregister is a no-op for clients the hub does not know
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	_, known := h.clients[client.ID()]
	delete(h.clients, client.ID())
	h.mu.Unlock()

	if known {
		log.Debug().Str("staff_id", client.StaffID()).Str("client_id", client.ID()).Msg("WebSocket client unregistered")
	}
}

// Broadcast sends event to every client subscribed to its entity. Sends do
// not block: a client that cannot keep up loses the event and is counted in
// Dropped.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	targets := make([]ClientInterface, 0, len(h.clients))
	for _, c := range h.clients {
		if c.Wants(event.Entity) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := event.ToJSON()
	if err != nil {
		log.Error().Err(err).Str("event_type", event.Type).Msg("Failed to serialize event")
		return
	}

	delivered := 0
	for _, c := range targets {
		if err := c.Send(data); err != nil {
			h.dropped.Add(1)
			log.Warn().Err(err).Str("client_id", c.ID()).Str("event_type", event.Type).Msg("Event not delivered")
			continue
		}
		delivered++
	}

	log.Debug().Str("event_type", event.Type).Int("delivered", delivered).Int("targets", len(targets)).Msg("Broadcast event")
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StaffClientCount returns how many connections a staff member has open
func (h *Hub) StaffClientCount(staffID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, c := range h.clients {
		if c.StaffID() == staffID {
			n++
		}
	}
	return n
}

// Dropped is the number of events that could not be queued for a client
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// CloseAll disconnects every client, used on shutdown
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]ClientInterface)
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.Close()
	}
}
