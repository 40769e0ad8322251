package service

import (
	"context"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/websocket"
	"github.com/shopspring/decimal"
)

// LoanPaymentService handles recording, correcting and reversing loan payments
type LoanPaymentService struct {
	transactor     domain.Transactor
	paymentRepo    domain.LoanPaymentRepository
	loanRepo       domain.LoanRepository
	eventPublisher websocket.EventPublisher
	metrics        Metrics
	now            func() time.Time
}

// NewLoanPaymentService creates a new LoanPaymentService
func NewLoanPaymentService(transactor domain.Transactor, paymentRepo domain.LoanPaymentRepository, loanRepo domain.LoanRepository) *LoanPaymentService {
	return &LoanPaymentService{
		transactor:  transactor,
		paymentRepo: paymentRepo,
		loanRepo:    loanRepo,
		metrics:     NoOpMetrics{},
		now:         time.Now,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *LoanPaymentService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the metrics recorder
func (s *LoanPaymentService) SetMetrics(metrics Metrics) {
	if metrics != nil {
		s.metrics = metrics
	}
}

// publishEvent publishes an event if a publisher is configured
func (s *LoanPaymentService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(event)
	}
}

// Allocation is the interest/principal split of one payment
type Allocation struct {
	Interest  decimal.Decimal
	Principal decimal.Decimal
}

// AllocatePayment splits an amount interest-first against the next scheduled
// installment. Anything beyond the scheduled interest reduces principal, even
// past the EMI. With no installment left the whole amount is principal.
func AllocatePayment(next *domain.ScheduleEntry, amount decimal.Decimal) Allocation {
	if next == nil {
		return Allocation{Interest: decimal.Zero, Principal: amount}
	}
	interest := decimal.Min(next.Interest, amount)
	return Allocation{
		Interest:  interest,
		Principal: amount.Sub(interest).Round(2),
	}
}

// RecordPaymentInput contains the data needed to record a payment
type RecordPaymentInput struct {
	Amount        decimal.Decimal
	PaymentMethod string
	PaymentDate   time.Time
	ReferenceID   *string
	Notes         *string
	BankDetails   *domain.BankDetails
}

// PaymentResult is a payment together with the loan state it produced
type PaymentResult struct {
	Payment *domain.LoanPayment `json:"payment"`
	Loan    *domain.Loan        `json:"loan"`
}

// RecordPayment applies a payment to an approved or active loan. The loan row
// is locked for the duration so the balance, payment count and status move
// together with the new payment record.
func (s *LoanPaymentService) RecordPayment(ctx context.Context, loanID int32, input RecordPaymentInput) (*PaymentResult, error) {
	amount := input.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, domain.ErrLoanPaymentAmountInvalid
	}
	if input.PaymentMethod == "" {
		return nil, domain.ErrLoanPaymentMethodEmpty
	}
	if input.PaymentDate.IsZero() {
		return nil, domain.ErrLoanPaymentDateRequired
	}

	result := &PaymentResult{}
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		loan, err := s.loanRepo.GetByIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if !loan.IsPayable() {
			return domain.ErrLoanNotPayable
		}
		if !loan.RemainingBalance.IsPositive() {
			return domain.ErrLoanAlreadySettled
		}

		split := AllocatePayment(loan.NextScheduleEntry(), amount)
		balance := loan.RemainingBalance.Sub(amount).Round(2)
		if balance.IsNegative() {
			balance = decimal.Zero
		}

		payment := &domain.LoanPayment{
			LoanID:              loan.ID,
			CustomerID:          loan.CustomerID,
			PaymentNumber:       loan.PaymentsReceived + 1,
			Kind:                domain.PaymentKindInstallment,
			AmountPaid:          amount,
			PrincipalPortion:    split.Principal,
			InterestPortion:     split.Interest,
			BalanceAfterPayment: balance,
			PaymentMethod:       input.PaymentMethod,
			PaymentDate:         input.PaymentDate,
			ReferenceID:         input.ReferenceID,
			Notes:               input.Notes,
			BankDetails:         input.BankDetails,
			CreatedAt:           s.now(),
		}

		loan.RemainingBalance = balance
		loan.PaymentsReceived++
		if !balance.IsPositive() {
			loan.Status = domain.LoanStatusCompleted
		} else if loan.Status == domain.LoanStatusApproved {
			loan.Status = domain.LoanStatusActive
		}

		if result.Payment, err = s.paymentRepo.Create(ctx, payment); err != nil {
			return err
		}
		result.Loan, err = s.loanRepo.Update(ctx, loan)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPayment(string(domain.PaymentKindInstallment))
	if result.Loan.Status == domain.LoanStatusCompleted {
		s.metrics.RecordLoanTransition(string(domain.LoanStatusCompleted))
	}
	s.publishEvent(websocket.PaymentRecorded(result))
	return result, nil
}

// loadEditable fetches a payment that belongs to loanID and is still inside
// its edit window
func (s *LoanPaymentService) loadEditable(ctx context.Context, loanID, paymentID int32) (*domain.LoanPayment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.LoanID != loanID {
		return nil, domain.ErrLoanPaymentNotFound
	}
	if payment.Kind == domain.PaymentKindSettlement {
		return nil, domain.ErrLoanPaymentIsSettlement
	}
	if !payment.IsEditable(s.now()) {
		return nil, domain.ErrLoanPaymentEditExpired
	}
	return payment, nil
}

// ReversePayment deletes a payment recorded in the last 24 hours and restores
// the loan to where it stood before it. A completed loan goes back to active.
func (s *LoanPaymentService) ReversePayment(ctx context.Context, loanID, paymentID int32) (*domain.Loan, error) {
	var updated *domain.Loan
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		loan, err := s.loanRepo.GetByIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		payment, err := s.loadEditable(ctx, loanID, paymentID)
		if err != nil {
			return err
		}
		if loan.Status == domain.LoanStatusClosed {
			return domain.ErrLoanTerminal
		}

		loan.RemainingBalance = loan.RemainingBalance.Add(payment.AmountPaid).Round(2)
		if loan.PaymentsReceived > 0 {
			loan.PaymentsReceived--
		}
		if loan.Status == domain.LoanStatusCompleted {
			loan.Status = domain.LoanStatusActive
		}

		if err := s.paymentRepo.Delete(ctx, payment.ID); err != nil {
			return err
		}
		updated, err = s.loanRepo.Update(ctx, loan)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPaymentReversed()
	s.publishEvent(websocket.PaymentReversed(updated))
	return updated, nil
}

// UpdatePaymentInput contains the editable payment fields. Nil fields are left
// unchanged.
type UpdatePaymentInput struct {
	Amount        *decimal.Decimal
	PaymentMethod *string
	PaymentDate   *time.Time
	ReferenceID   *string
	Notes         *string
	BankDetails   *domain.BankDetails
}

// UpdatePayment corrects the descriptive fields of a recent payment. The
// amount is fixed once recorded; changing it needs a reversal and a new
// payment so the loan balance stays in step.
func (s *LoanPaymentService) UpdatePayment(ctx context.Context, loanID, paymentID int32, input UpdatePaymentInput) (*domain.LoanPayment, error) {
	payment, err := s.loadEditable(ctx, loanID, paymentID)
	if err != nil {
		return nil, err
	}
	if input.Amount != nil && !input.Amount.Round(2).Equal(payment.AmountPaid) {
		return nil, domain.ErrLoanPaymentAmountLocked
	}

	if input.PaymentMethod != nil {
		if *input.PaymentMethod == "" {
			return nil, domain.ErrLoanPaymentMethodEmpty
		}
		payment.PaymentMethod = *input.PaymentMethod
	}
	if input.PaymentDate != nil {
		if input.PaymentDate.IsZero() {
			return nil, domain.ErrLoanPaymentDateRequired
		}
		payment.PaymentDate = *input.PaymentDate
	}
	if input.ReferenceID != nil {
		payment.ReferenceID = input.ReferenceID
	}
	if input.Notes != nil {
		payment.Notes = input.Notes
	}
	if input.BankDetails != nil {
		payment.BankDetails = input.BankDetails
	}

	updated, err := s.paymentRepo.Update(ctx, payment)
	if err != nil {
		return nil, err
	}

	s.publishEvent(websocket.PaymentUpdated(updated))
	return updated, nil
}

// GetPaymentsByLoanID retrieves all payments for a loan
func (s *LoanPaymentService) GetPaymentsByLoanID(ctx context.Context, loanID int32) ([]*domain.LoanPayment, error) {
	if _, err := s.loanRepo.GetByID(ctx, loanID); err != nil {
		return nil, err
	}
	return s.paymentRepo.GetByLoanID(ctx, loanID)
}

// GetPayment retrieves one payment of a loan
func (s *LoanPaymentService) GetPayment(ctx context.Context, loanID, paymentID int32) (*domain.LoanPayment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.LoanID != loanID {
		return nil, domain.ErrLoanPaymentNotFound
	}
	return payment, nil
}
