package websocket

import "github.com/rs/zerolog/log"

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish delivers an event to every subscriber of the publisher
	Publish(event Event)
}

// Ensure Hub implements EventPublisher
var _ EventPublisher = (*Hub)(nil)

// Publish implements EventPublisher by broadcasting the event to the office
func (h *Hub) Publish(event Event) {
	h.Broadcast(event)
}

// NoOpPublisher is a publisher that does nothing (for testing or when realtime updates are disabled)
type NoOpPublisher struct{}

// Publish does nothing
func (n *NoOpPublisher) Publish(event Event) {}

// MultiPublisher fans an event out to several publishers in order
type MultiPublisher struct {
	publishers []EventPublisher
}

// NewMultiPublisher skips nil publishers
func NewMultiPublisher(publishers ...EventPublisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// Publish forwards the event; a panicking publisher does not stop the others
func (m *MultiPublisher) Publish(event Event) {
	for _, p := range m.publishers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("event_type", event.Type).Msg("Event publisher panicked")
				}
			}()
			p.Publish(event)
		}()
	}
}
