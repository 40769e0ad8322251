package domain

import (
	"context"
	"time"
)

var (
	ErrDocumentTypeInvalid   = NewError(ErrInvalidInput, "unknown document type")
	ErrDocumentNotAvailable  = NewError(ErrInvalidState, "document is not available for the loan's current status")
	ErrDocumentPaymentNeeded = NewError(ErrInvalidInput, "receipt requires a payment")
)

type DocumentType string

const (
	DocumentAgreement             DocumentType = "agreement"
	DocumentStatement             DocumentType = "statement"
	DocumentReceipt               DocumentType = "receipt"
	DocumentNOC                   DocumentType = "noc"
	DocumentInvoice               DocumentType = "invoice"
	DocumentSettlementCertificate DocumentType = "settlement-certificate"
)

func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentAgreement, DocumentStatement, DocumentReceipt, DocumentNOC, DocumentInvoice, DocumentSettlementCertificate:
		return true
	}
	return false
}

// Document is the record of a generated artifact.
type Document struct {
	ID             int32        `json:"id"`
	Type           DocumentType `json:"type"`
	DocumentNumber string       `json:"documentNumber"`
	LoanID         int32        `json:"loanId"`
	StorageKey     *string      `json:"storageKey,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// DocumentData is everything a renderer needs. All numbers are already computed.
type DocumentData struct {
	Type           DocumentType
	DocumentNumber string
	GeneratedAt    time.Time
	Lender         *Lender
	Customer       *Customer
	Loan           *Loan
	Payments       []*LoanPayment
	Payment        *LoanPayment
	Invoice        *Invoice
}

// DocumentRenderer turns computed data into a file.
type DocumentRenderer interface {
	Render(data *DocumentData) ([]byte, error)
	ContentType() string
}

// DocumentStore persists rendered files.
type DocumentStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type DocumentRepository interface {
	Create(ctx context.Context, doc *Document) (*Document, error)
	GetByLoanID(ctx context.Context, loanID int32) ([]*Document, error)
}
