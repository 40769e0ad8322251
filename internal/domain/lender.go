package domain

import (
	"context"
	"time"
)

var (
	ErrLenderNameRequired = NewError(ErrInvalidInput, "business name is required")
	ErrLenderPrefixEmpty  = NewError(ErrInvalidInput, "number prefixes cannot be empty")
	ErrLenderLogoInvalid  = NewError(ErrInvalidInput, "logo must be a JPEG or PNG image")
)

// Default values for the lender row created on first access.
const (
	DefaultLenderName     = "My Lending Business"
	DefaultLoanPrefix     = "LN"
	DefaultInvoicePrefix  = "INV"
	DefaultDocumentPrefix = "DOC"
)

// Lender is the single business profile the back office operates as.
type Lender struct {
	ID                 int32     `json:"id"`
	BusinessName       string    `json:"businessName"`
	Address            *string   `json:"address,omitempty"`
	Phone              *string   `json:"phone,omitempty"`
	Email              *string   `json:"email,omitempty"`
	RegistrationNumber *string   `json:"registrationNumber,omitempty"`
	LoanPrefix         string    `json:"loanPrefix"`
	InvoicePrefix      string    `json:"invoicePrefix"`
	DocumentPrefix     string    `json:"documentPrefix"`
	LogoKey            *string   `json:"logoKey,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// DefaultLender returns the profile used when no lender row exists yet.
func DefaultLender() *Lender {
	return &Lender{
		BusinessName:   DefaultLenderName,
		LoanPrefix:     DefaultLoanPrefix,
		InvoicePrefix:  DefaultInvoicePrefix,
		DocumentPrefix: DefaultDocumentPrefix,
	}
}

func (l *Lender) Validate() error {
	if l.BusinessName == "" {
		return ErrLenderNameRequired
	}
	if l.LoanPrefix == "" || l.InvoicePrefix == "" || l.DocumentPrefix == "" {
		return ErrLenderPrefixEmpty
	}
	return nil
}

type LenderRepository interface {
	// GetOrCreate returns the lender row, inserting defaults on first access.
	GetOrCreate(ctx context.Context, defaults *Lender) (*Lender, error)
	Update(ctx context.Context, lender *Lender) (*Lender, error)
}
