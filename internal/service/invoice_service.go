package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/util"
	"github.com/dafibh/lendora/lendora-backend/internal/websocket"
	"github.com/shopspring/decimal"
)

// InvoiceRunResult holds the result of one invoice generation run
type InvoiceRunResult struct {
	Generated int      `json:"generated"`
	Skipped   int      `json:"skipped"`
	Overdue   int64    `json:"overdue"`
	Errors    []string `json:"errors,omitempty"`
}

// InvoiceService bills the next scheduled installment of every active loan
// and manages the invoices it produced.
type InvoiceService struct {
	transactor     domain.Transactor
	invoiceRepo    domain.InvoiceRepository
	loanRepo       domain.LoanRepository
	sequenceRepo   domain.SequenceRepository
	lenderRepo     domain.LenderRepository
	eventPublisher websocket.EventPublisher
	metrics        Metrics
	now            func() time.Time
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	transactor domain.Transactor,
	invoiceRepo domain.InvoiceRepository,
	loanRepo domain.LoanRepository,
	sequenceRepo domain.SequenceRepository,
	lenderRepo domain.LenderRepository,
) *InvoiceService {
	return &InvoiceService{
		transactor:   transactor,
		invoiceRepo:  invoiceRepo,
		loanRepo:     loanRepo,
		sequenceRepo: sequenceRepo,
		lenderRepo:   lenderRepo,
		metrics:      NoOpMetrics{},
		now:          time.Now,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *InvoiceService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the metrics recorder
func (s *InvoiceService) SetMetrics(metrics Metrics) {
	if metrics != nil {
		s.metrics = metrics
	}
}

func (s *InvoiceService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(event)
	}
}

// RunInvoiceGeneration creates a pending invoice for the next unpaid
// installment of every active loan with an outstanding balance, then flags
// open invoices whose due date has passed. Running it again for the same
// period creates nothing new. A failure on one loan is recorded in the
// result and the run carries on with the rest.
func (s *InvoiceService) RunInvoiceGeneration(ctx context.Context) (*InvoiceRunResult, error) {
	startTime := time.Now()
	result := &InvoiceRunResult{
		Errors: make([]string, 0),
	}

	loans, err := s.loanRepo.ListInvoiceable(ctx)
	if err != nil {
		return nil, err
	}
	lender, err := s.lenderRepo.GetOrCreate(ctx, domain.DefaultLender())
	if err != nil {
		return nil, err
	}

	for _, loan := range loans {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		invoice, err := s.invoiceLoan(ctx, loan, lender.InvoicePrefix)
		switch {
		case errors.Is(err, domain.ErrInvoiceExists):
			result.Skipped++
		case err != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("loan %s: %v", loan.LoanNumber, err))
		case invoice == nil:
			result.Skipped++
		default:
			result.Generated++
			s.publishEvent(websocket.InvoiceGenerated(invoice))
		}
	}

	overdue, err := s.invoiceRepo.MarkOverdue(ctx, util.DateOnly(s.now()))
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("overdue sweep: %v", err))
	}
	result.Overdue = overdue

	s.metrics.RecordInvoiceRun(result.Generated, result.Skipped, len(result.Errors), time.Since(startTime))
	return result, nil
}

// invoiceLoan bills the loan's next installment. It returns nil without an
// error when the schedule is exhausted.
func (s *InvoiceService) invoiceLoan(ctx context.Context, loan *domain.Loan, prefix string) (*domain.Invoice, error) {
	entry := loan.NextScheduleEntry()
	if entry == nil {
		return nil, nil
	}
	month, year := util.PeriodOf(entry.DueDate)

	var created *domain.Invoice
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := s.invoiceRepo.ExistsForPeriod(ctx, loan.ID, month, year)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrInvoiceExists
		}

		numberYear := s.now().Year()
		seq, err := s.sequenceRepo.Next(ctx, prefix, numberYear)
		if err != nil {
			return err
		}

		created, err = s.invoiceRepo.Create(ctx, &domain.Invoice{
			InvoiceNumber: domain.FormatSequenceNumber(prefix, numberYear, seq),
			LoanID:        loan.ID,
			CustomerID:    loan.CustomerID,
			PeriodMonth:   month,
			PeriodYear:    year,
			AmountDue:     entry.EMI,
			AmountPaid:    decimal.Zero,
			BalanceDue:    entry.EMI,
			DueDate:       entry.DueDate,
			Status:        domain.InvoiceStatusPending,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListInvoices retrieves invoices matching the filter
func (s *InvoiceService) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]*domain.Invoice, error) {
	return s.invoiceRepo.List(ctx, filter)
}

// GetInvoice retrieves an invoice by ID
func (s *InvoiceService) GetInvoice(ctx context.Context, id int32) (*domain.Invoice, error) {
	return s.invoiceRepo.GetByID(ctx, id)
}

func (s *InvoiceService) transition(ctx context.Context, id int32, next domain.InvoiceStatus) (*domain.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !invoice.CanTransitionTo(next) {
		return nil, domain.ErrInvoiceTransition
	}

	invoice.Status = next
	if next == domain.InvoiceStatusPaid {
		invoice.AmountPaid = invoice.AmountDue
		invoice.BalanceDue = decimal.Zero
	}

	updated, err := s.invoiceRepo.UpdateStatus(ctx, invoice)
	if err != nil {
		return nil, err
	}
	s.publishEvent(websocket.InvoiceUpdated(updated))
	return updated, nil
}

// IssueInvoice marks a pending invoice as sent to the customer
func (s *InvoiceService) IssueInvoice(ctx context.Context, id int32) (*domain.Invoice, error) {
	return s.transition(ctx, id, domain.InvoiceStatusIssued)
}

// MarkInvoicePaid settles an open invoice in full
func (s *InvoiceService) MarkInvoicePaid(ctx context.Context, id int32) (*domain.Invoice, error) {
	return s.transition(ctx, id, domain.InvoiceStatusPaid)
}

// CancelInvoice voids an open invoice
func (s *InvoiceService) CancelInvoice(ctx context.Context, id int32) (*domain.Invoice, error) {
	return s.transition(ctx, id, domain.InvoiceStatusCancelled)
}
