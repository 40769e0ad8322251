package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents what happened to an entity
type EventType string

const (
	EventTypeCreated       EventType = "created"
	EventTypeUpdated       EventType = "updated"
	EventTypeApproved      EventType = "approved"
	EventTypeCancelled     EventType = "cancelled"
	EventTypeStatusChanged EventType = "status_changed"
	EventTypeForeclosed    EventType = "foreclosed"
	EventTypeRecorded      EventType = "recorded"
	EventTypeReversed      EventType = "reversed"
	EventTypeGenerated     EventType = "generated"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeLoan     EntityType = "loan"
	EntityTypePayment  EntityType = "payment"
	EntityTypeInvoice  EntityType = "invoice"
	EntityTypeCustomer EntityType = "customer"
)

// Event represents a message pushed to office clients and the message bus
// Format: { id, type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`      // Combined type e.g. "loan.approved"
	Entity    EntityType  `json:"entity"`    // Entity type e.g. "loan"
	Payload   interface{} `json:"payload"`   // Full entity data
	Timestamp time.Time   `json:"timestamp"` // Event timestamp
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func LoanCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeLoan, payload)
}

func LoanUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeLoan, payload)
}

func LoanApproved(payload interface{}) Event {
	return NewEvent(EventTypeApproved, EntityTypeLoan, payload)
}

func LoanCancelled(payload interface{}) Event {
	return NewEvent(EventTypeCancelled, EntityTypeLoan, payload)
}

func LoanStatusChanged(payload interface{}) Event {
	return NewEvent(EventTypeStatusChanged, EntityTypeLoan, payload)
}

func LoanForeclosed(payload interface{}) Event {
	return NewEvent(EventTypeForeclosed, EntityTypeLoan, payload)
}

func PaymentRecorded(payload interface{}) Event {
	return NewEvent(EventTypeRecorded, EntityTypePayment, payload)
}

func PaymentReversed(payload interface{}) Event {
	return NewEvent(EventTypeReversed, EntityTypePayment, payload)
}

func PaymentUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypePayment, payload)
}

// InvoiceGenerated creates an invoice.generated event
func InvoiceGenerated(payload interface{}) Event {
	return NewEvent(EventTypeGenerated, EntityTypeInvoice, payload)
}

// InvoiceUpdated creates an invoice.updated event
func InvoiceUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeInvoice, payload)
}

// CustomerCreated creates a customer.created event
func CustomerCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeCustomer, payload)
}
