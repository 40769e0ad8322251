package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvoiceNotFound   = NewError(ErrNotFound, "invoice not found")
	ErrInvoiceExists     = NewError(ErrInvalidOperation, "invoice already exists for this loan and period")
	ErrInvoiceTransition = NewError(ErrInvalidState, "invoice status does not allow this change")
)

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusIssued    InvoiceStatus = "issued"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// IsOpen reports whether the invoice still expects a payment.
func (s InvoiceStatus) IsOpen() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusIssued || s == InvoiceStatusOverdue
}

type Invoice struct {
	ID            int32           `json:"id"`
	InvoiceNumber string          `json:"invoiceNumber"`
	LoanID        int32           `json:"loanId"`
	CustomerID    int32           `json:"customerId"`
	PeriodMonth   int32           `json:"periodMonth"`
	PeriodYear    int32           `json:"periodYear"`
	AmountDue     decimal.Decimal `json:"amountDue"`
	AmountPaid    decimal.Decimal `json:"amountPaid"`
	BalanceDue    decimal.Decimal `json:"balanceDue"`
	DueDate       time.Time       `json:"dueDate"`
	Status        InvoiceStatus   `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// CanTransitionTo reports whether the invoice may move to next.
func (i *Invoice) CanTransitionTo(next InvoiceStatus) bool {
	switch next {
	case InvoiceStatusIssued:
		return i.Status == InvoiceStatusPending
	case InvoiceStatusOverdue:
		return i.Status == InvoiceStatusPending || i.Status == InvoiceStatusIssued
	case InvoiceStatusPaid, InvoiceStatusCancelled:
		return i.Status.IsOpen()
	}
	return false
}

type InvoiceFilter struct {
	Status InvoiceStatus
	LoanID int32
}

type InvoiceRepository interface {
	// Create returns ErrInvoiceExists when the (loan, month, year) period is taken.
	Create(ctx context.Context, invoice *Invoice) (*Invoice, error)
	GetByID(ctx context.Context, id int32) (*Invoice, error)
	ExistsForPeriod(ctx context.Context, loanID int32, month, year int32) (bool, error)
	List(ctx context.Context, filter InvoiceFilter) ([]*Invoice, error)
	UpdateStatus(ctx context.Context, invoice *Invoice) (*Invoice, error)
	// MarkOverdue flags open invoices due before asOf and returns how many changed.
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}
