package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrLoanPaymentNotFound      = NewError(ErrNotFound, "loan payment not found")
	ErrLoanPaymentAmountInvalid = NewError(ErrInvalidInput, "payment amount must be positive")
	ErrLoanPaymentMethodEmpty   = NewError(ErrInvalidInput, "payment method is required")
	ErrLoanPaymentDateRequired  = NewError(ErrInvalidInput, "payment date is required")
	ErrLoanPaymentEditExpired   = NewError(ErrNotAllowed, "payments can only be changed within 24 hours of being recorded")
	ErrLoanPaymentAmountLocked  = NewError(ErrInvalidOperation, "payment amount cannot be edited; reverse the payment and record it again")
	ErrLoanPaymentIsSettlement  = NewError(ErrInvalidOperation, "settlement payments cannot be changed")
)

type PaymentKind string

const (
	PaymentKindInstallment PaymentKind = "installment"
	PaymentKindSettlement  PaymentKind = "settlement"
)

// BankDetails describes the bank transfer a payment arrived through.
type BankDetails struct {
	BankName      string `json:"bankName,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
}

type LoanPayment struct {
	ID                  int32           `json:"id"`
	LoanID              int32           `json:"loanId"`
	CustomerID          int32           `json:"customerId"`
	PaymentNumber       int32           `json:"paymentNumber"`
	Kind                PaymentKind     `json:"kind"`
	AmountPaid          decimal.Decimal `json:"amountPaid"`
	PrincipalPortion    decimal.Decimal `json:"principalPortion"`
	InterestPortion     decimal.Decimal `json:"interestPortion"`
	BalanceAfterPayment decimal.Decimal `json:"balanceAfterPayment"`
	PaymentMethod       string          `json:"paymentMethod"`
	PaymentDate         time.Time       `json:"paymentDate"`
	ReferenceID         *string         `json:"referenceId,omitempty"`
	Notes               *string         `json:"notes,omitempty"`
	BankDetails         *BankDetails    `json:"bankDetails,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// IsEditable reports whether the payment is still inside its edit window at now.
func (p *LoanPayment) IsEditable(now time.Time) bool {
	return now.Sub(p.CreatedAt) <= PaymentEditWindow*time.Hour
}

type LoanPaymentRepository interface {
	Create(ctx context.Context, payment *LoanPayment) (*LoanPayment, error)
	GetByID(ctx context.Context, id int32) (*LoanPayment, error)
	GetByLoanID(ctx context.Context, loanID int32) ([]*LoanPayment, error)
	Update(ctx context.Context, payment *LoanPayment) (*LoanPayment, error)
	Delete(ctx context.Context, id int32) error
}
