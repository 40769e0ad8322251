package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		"id":         1,
		"loanNumber": "LN-2025-0001",
	}

	before := time.Now()
	evt := NewEvent(EventTypeCreated, EntityTypeLoan, payload)
	after := time.Now()

	assert.Equal(t, "loan.created", evt.Type)
	assert.Equal(t, EntityTypeLoan, evt.Entity)
	assert.Equal(t, payload, evt.Payload)
	assert.True(t, !evt.Timestamp.Before(before) && !evt.Timestamp.After(after))
}

func TestEvent_JSON_Serialization(t *testing.T) {
	fixedTime := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	evt := Event{
		Type:      "payment.recorded",
		Entity:    EntityTypePayment,
		Payload:   map[string]interface{}{"id": float64(1), "amountPaid": "700.00"},
		Timestamp: fixedTime,
	}

	data, err := json.Marshal(evt)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, evt.Type, decoded.Type)
	assert.Equal(t, evt.Entity, decoded.Entity)
	assert.Equal(t, fixedTime, decoded.Timestamp.UTC())

	decodedPayload, ok := decoded.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "700.00", decodedPayload["amountPaid"])
}

func TestEvent_Helpers(t *testing.T) {
	payload := map[string]interface{}{"id": float64(7)}

	tests := []struct {
		name     string
		evt      Event
		wantType string
		entity   EntityType
	}{
		{"LoanCreated", LoanCreated(payload), "loan.created", EntityTypeLoan},
		{"LoanUpdated", LoanUpdated(payload), "loan.updated", EntityTypeLoan},
		{"LoanApproved", LoanApproved(payload), "loan.approved", EntityTypeLoan},
		{"LoanCancelled", LoanCancelled(payload), "loan.cancelled", EntityTypeLoan},
		{"LoanStatusChanged", LoanStatusChanged(payload), "loan.status_changed", EntityTypeLoan},
		{"LoanForeclosed", LoanForeclosed(payload), "loan.foreclosed", EntityTypeLoan},
		{"PaymentRecorded", PaymentRecorded(payload), "payment.recorded", EntityTypePayment},
		{"PaymentReversed", PaymentReversed(payload), "payment.reversed", EntityTypePayment},
		{"PaymentUpdated", PaymentUpdated(payload), "payment.updated", EntityTypePayment},
		{"InvoiceGenerated", InvoiceGenerated(payload), "invoice.generated", EntityTypeInvoice},
		{"InvoiceUpdated", InvoiceUpdated(payload), "invoice.updated", EntityTypeInvoice},
		{"CustomerCreated", CustomerCreated(payload), "customer.created", EntityTypeCustomer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.evt.Type)
			assert.Equal(t, tt.entity, tt.evt.Entity)
			assert.Equal(t, payload, tt.evt.Payload)
		})
	}
}
