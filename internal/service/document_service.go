package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/util"
)

// DocumentRequest selects what to generate for a loan. PaymentID applies to
// receipts (latest payment when nil); InvoiceID is required for invoices.
type DocumentRequest struct {
	Type      domain.DocumentType
	PaymentID *int32
	InvoiceID *int32
}

// GeneratedDocument is a rendered file together with its stored record
type GeneratedDocument struct {
	Document    *domain.Document
	Content     []byte
	ContentType string
	Filename    string
}

// DocumentService gathers loan data, hands it to a renderer and keeps the
// output in object storage.
type DocumentService struct {
	loanRepo     domain.LoanRepository
	customerRepo domain.CustomerRepository
	paymentRepo  domain.LoanPaymentRepository
	invoiceRepo  domain.InvoiceRepository
	lenderRepo   domain.LenderRepository
	sequenceRepo domain.SequenceRepository
	documentRepo domain.DocumentRepository
	renderer     domain.DocumentRenderer
	store        domain.DocumentStore
	now          func() time.Time
}

// DocumentServiceDeps groups the collaborators of DocumentService
type DocumentServiceDeps struct {
	LoanRepo     domain.LoanRepository
	CustomerRepo domain.CustomerRepository
	PaymentRepo  domain.LoanPaymentRepository
	InvoiceRepo  domain.InvoiceRepository
	LenderRepo   domain.LenderRepository
	SequenceRepo domain.SequenceRepository
	DocumentRepo domain.DocumentRepository
	Renderer     domain.DocumentRenderer
	Store        domain.DocumentStore // optional
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(deps DocumentServiceDeps) *DocumentService {
	return &DocumentService{
		loanRepo:     deps.LoanRepo,
		customerRepo: deps.CustomerRepo,
		paymentRepo:  deps.PaymentRepo,
		invoiceRepo:  deps.InvoiceRepo,
		lenderRepo:   deps.LenderRepo,
		sequenceRepo: deps.SequenceRepo,
		documentRepo: deps.DocumentRepo,
		renderer:     deps.Renderer,
		store:        deps.Store,
		now:          time.Now,
	}
}

// GenerateDocument renders the requested document for a loan, stores it when
// object storage is configured and records it under the next document number.
func (s *DocumentService) GenerateDocument(ctx context.Context, loanID int32, req DocumentRequest) (*GeneratedDocument, error) {
	if !req.Type.IsValid() {
		return nil, domain.ErrDocumentTypeInvalid
	}

	data, err := s.collect(ctx, loanID, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	seq, err := s.sequenceRepo.Next(ctx, data.Lender.DocumentPrefix, now.Year())
	if err != nil {
		return nil, err
	}
	data.DocumentNumber = domain.FormatSequenceNumber(data.Lender.DocumentPrefix, now.Year(), seq)
	data.GeneratedAt = now

	content, err := s.renderer.Render(data)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", req.Type, err)
	}

	filename := fmt.Sprintf("%s-%s.pdf", req.Type, data.DocumentNumber)
	doc := &domain.Document{
		Type:           req.Type,
		DocumentNumber: data.DocumentNumber,
		LoanID:         loanID,
	}
	if s.store != nil {
		key := fmt.Sprintf("documents/%s/%s", data.Loan.LoanNumber, filename)
		if err := s.store.Upload(ctx, key, content, s.renderer.ContentType()); err != nil {
			return nil, fmt.Errorf("failed to store document: %w", err)
		}
		doc.StorageKey = &key
	}

	created, err := s.documentRepo.Create(ctx, doc)
	if err != nil {
		return nil, err
	}

	return &GeneratedDocument{
		Document:    created,
		Content:     content,
		ContentType: s.renderer.ContentType(),
		Filename:    filename,
	}, nil
}

// collect loads everything the requested document needs and checks that the
// loan is in a state the document can describe
func (s *DocumentService) collect(ctx context.Context, loanID int32, req DocumentRequest) (*domain.DocumentData, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	customer, err := s.customerRepo.GetByID(ctx, loan.CustomerID)
	if err != nil {
		return nil, err
	}
	lender, err := s.lenderRepo.GetOrCreate(ctx, domain.DefaultLender())
	if err != nil {
		return nil, err
	}
	payments, err := s.paymentRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	data := &domain.DocumentData{
		Type:     req.Type,
		Lender:   lender,
		Customer: customer,
		Loan:     loan,
		Payments: payments,
	}

	switch req.Type {
	case domain.DocumentNOC:
		if !loan.Status.IsTerminal() || loan.RemainingBalance.IsPositive() {
			return nil, domain.ErrDocumentNotAvailable
		}
	case domain.DocumentSettlementCertificate:
		if loan.Settlement == nil {
			return nil, domain.ErrDocumentNotAvailable
		}
	case domain.DocumentReceipt:
		payment, err := s.pickPayment(ctx, loanID, req.PaymentID, payments)
		if err != nil {
			return nil, err
		}
		data.Payment = payment
	case domain.DocumentInvoice:
		if req.InvoiceID == nil {
			return nil, domain.NewError(domain.ErrInvalidInput, "invoice document requires an invoice")
		}
		invoice, err := s.invoiceRepo.GetByID(ctx, *req.InvoiceID)
		if err != nil {
			return nil, err
		}
		if invoice.LoanID != loanID {
			return nil, domain.ErrInvoiceNotFound
		}
		data.Invoice = invoice
	}

	return data, nil
}

func (s *DocumentService) pickPayment(ctx context.Context, loanID int32, paymentID *int32, payments []*domain.LoanPayment) (*domain.LoanPayment, error) {
	if paymentID == nil {
		if len(payments) == 0 {
			return nil, domain.ErrDocumentPaymentNeeded
		}
		return payments[len(payments)-1], nil
	}
	payment, err := s.paymentRepo.GetByID(ctx, *paymentID)
	if err != nil {
		return nil, err
	}
	if payment.LoanID != loanID {
		return nil, domain.ErrLoanPaymentNotFound
	}
	return payment, nil
}

// ListDocuments retrieves the documents generated for a loan
func (s *DocumentService) ListDocuments(ctx context.Context, loanID int32) ([]*domain.Document, error) {
	if _, err := s.loanRepo.GetByID(ctx, loanID); err != nil {
		return nil, err
	}
	return s.documentRepo.GetByLoanID(ctx, loanID)
}

// statementHeader is the column layout of the CSV statement
var statementHeader = []string{
	"payment_number", "kind", "payment_date", "amount_paid", "principal", "interest", "balance_after", "method", "reference",
}

// StatementCSV renders the payment history of a loan as CSV
func (s *DocumentService) StatementCSV(ctx context.Context, loanID int32) ([]byte, error) {
	if _, err := s.loanRepo.GetByID(ctx, loanID); err != nil {
		return nil, err
	}
	payments, err := s.paymentRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(statementHeader); err != nil {
		return nil, err
	}
	for _, p := range payments {
		ref := ""
		if p.ReferenceID != nil {
			ref = *p.ReferenceID
		}
		record := []string{
			fmt.Sprintf("%d", p.PaymentNumber),
			string(p.Kind),
			util.FormatDate(p.PaymentDate),
			p.AmountPaid.StringFixed(2),
			p.PrincipalPortion.StringFixed(2),
			p.InterestPortion.StringFixed(2),
			p.BalanceAfterPayment.StringFixed(2),
			p.PaymentMethod,
			ref,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
