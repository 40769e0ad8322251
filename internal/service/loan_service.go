package service

import (
	"context"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/websocket"
	"github.com/shopspring/decimal"
)

// LoanService drives the loan lifecycle: origination, approval, cancellation,
// manual status overrides and foreclosure.
type LoanService struct {
	transactor     domain.Transactor
	loanRepo       domain.LoanRepository
	customerRepo   domain.CustomerRepository
	paymentRepo    domain.LoanPaymentRepository
	sequenceRepo   domain.SequenceRepository
	lenderRepo     domain.LenderRepository
	eventPublisher websocket.EventPublisher
	metrics        Metrics
	now            func() time.Time
}

// NewLoanService creates a new LoanService
func NewLoanService(
	transactor domain.Transactor,
	loanRepo domain.LoanRepository,
	customerRepo domain.CustomerRepository,
	paymentRepo domain.LoanPaymentRepository,
	sequenceRepo domain.SequenceRepository,
	lenderRepo domain.LenderRepository,
) *LoanService {
	return &LoanService{
		transactor:   transactor,
		loanRepo:     loanRepo,
		customerRepo: customerRepo,
		paymentRepo:  paymentRepo,
		sequenceRepo: sequenceRepo,
		lenderRepo:   lenderRepo,
		metrics:      NoOpMetrics{},
		now:          time.Now,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *LoanService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the metrics recorder
func (s *LoanService) SetMetrics(metrics Metrics) {
	if metrics != nil {
		s.metrics = metrics
	}
}

// publishEvent publishes an event if a publisher is configured
func (s *LoanService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(event)
	}
}

// LoanTermsInput contains the terms shared by loan creation and update
type LoanTermsInput struct {
	CustomerID   int32
	Principal    decimal.Decimal
	MonthlyRate  decimal.Decimal
	Tenure       int32
	InterestType domain.InterestType
	StartDate    time.Time
	EMIOverride  *decimal.Decimal
	Purpose      *string
	Notes        *string
}

func (in LoanTermsInput) estimateInput() EstimateInput {
	return EstimateInput{
		Principal:    in.Principal,
		MonthlyRate:  in.MonthlyRate,
		Tenure:       in.Tenure,
		InterestType: in.InterestType,
		StartDate:    in.StartDate,
		EMIOverride:  in.EMIOverride,
	}
}

// applyTerms writes the terms and their derived numbers onto the loan and
// resets the running balance to the full amount payable.
func applyTerms(loan *domain.Loan, input LoanTermsInput, est *LoanEstimate) {
	loan.CustomerID = input.CustomerID
	loan.Principal = input.Principal
	loan.MonthlyInterestRate = input.MonthlyRate
	loan.DurationMonths = input.Tenure
	loan.InterestType = input.InterestType
	loan.StartDate = est.StartDate
	loan.EndDate = est.EndDate
	loan.MonthlyEMI = est.MonthlyEMI
	loan.EMIOverride = input.EMIOverride != nil
	loan.TotalAmountPayable = est.TotalAmountPayable
	loan.TotalInterestAmount = est.TotalInterestAmount
	loan.RemainingBalance = est.TotalAmountPayable
	loan.PaymentsReceived = 0
	loan.Schedule = est.Schedule
	loan.Purpose = input.Purpose
	loan.Notes = input.Notes
}

// CreateLoan validates the terms, computes the schedule through
// CalculateLoanEstimate and stores the loan as pending approval with the
// next loan number.
func (s *LoanService) CreateLoan(ctx context.Context, input LoanTermsInput) (*domain.Loan, error) {
	if input.CustomerID <= 0 {
		return nil, domain.ErrLoanCustomerRequired
	}
	est, err := CalculateLoanEstimate(input.estimateInput())
	if err != nil {
		return nil, err
	}
	if _, err := s.customerRepo.GetByID(ctx, input.CustomerID); err != nil {
		return nil, err
	}
	lender, err := s.lenderRepo.GetOrCreate(ctx, domain.DefaultLender())
	if err != nil {
		return nil, err
	}

	loan := &domain.Loan{Status: domain.LoanStatusPendingApproval}
	applyTerms(loan, input, est)

	var created *domain.Loan
	err = s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		year := s.now().Year()
		seq, err := s.sequenceRepo.Next(ctx, lender.LoanPrefix, year)
		if err != nil {
			return err
		}
		loan.LoanNumber = domain.FormatSequenceNumber(lender.LoanPrefix, year, seq)

		created, err = s.loanRepo.Create(ctx, loan)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLoanCreated(string(created.InterestType))
	s.publishEvent(websocket.LoanCreated(created))
	return created, nil
}

// UpdateLoan replaces the terms of a loan that is still pending approval and
// recomputes everything derived from them.
func (s *LoanService) UpdateLoan(ctx context.Context, id int32, input LoanTermsInput) (*domain.Loan, error) {
	if input.CustomerID <= 0 {
		return nil, domain.ErrLoanCustomerRequired
	}

	var updated *domain.Loan
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		loan, err := s.loanRepo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if loan.Status != domain.LoanStatusPendingApproval {
			return domain.ErrLoanNotPending
		}

		est, err := CalculateLoanEstimate(input.estimateInput())
		if err != nil {
			return err
		}
		if input.CustomerID != loan.CustomerID {
			if _, err := s.customerRepo.GetByID(ctx, input.CustomerID); err != nil {
				return err
			}
		}

		applyTerms(loan, input, est)
		updated, err = s.loanRepo.Update(ctx, loan)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(websocket.LoanUpdated(updated))
	return updated, nil
}

// transition loads the loan under lock, lets mutate change it and stores it
func (s *LoanService) transition(ctx context.Context, id int32, mutate func(loan *domain.Loan) error) (*domain.Loan, error) {
	var updated *domain.Loan
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		loan, err := s.loanRepo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(loan); err != nil {
			return err
		}
		updated, err = s.loanRepo.Update(ctx, loan)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLoanTransition(string(updated.Status))
	return updated, nil
}

// ApproveLoan moves a pending loan straight to active and stamps the approval date
func (s *LoanService) ApproveLoan(ctx context.Context, id int32) (*domain.Loan, error) {
	loan, err := s.transition(ctx, id, func(loan *domain.Loan) error {
		if loan.Status != domain.LoanStatusPendingApproval {
			return domain.ErrLoanNotPending
		}
		now := s.now()
		loan.Status = domain.LoanStatusActive
		loan.ApprovalDate = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(websocket.LoanApproved(loan))
	return loan, nil
}

// CancelLoan closes a loan that was never approved
func (s *LoanService) CancelLoan(ctx context.Context, id int32) (*domain.Loan, error) {
	loan, err := s.transition(ctx, id, func(loan *domain.Loan) error {
		if loan.Status != domain.LoanStatusPendingApproval {
			return domain.ErrLoanNotPending
		}
		loan.Status = domain.LoanStatusClosed
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(websocket.LoanCancelled(loan))
	return loan, nil
}

// UpdateLoanStatus applies a manual status override between pending approval,
// approved and active. Schedule and balances are left alone.
func (s *LoanService) UpdateLoanStatus(ctx context.Context, id int32, target domain.LoanStatus) (*domain.Loan, error) {
	if !target.IsManualTarget() {
		return nil, domain.ErrLoanStatusTarget
	}

	loan, err := s.transition(ctx, id, func(loan *domain.Loan) error {
		if loan.Status.IsTerminal() {
			return domain.ErrLoanTerminal
		}
		if target == domain.LoanStatusPendingApproval && loan.PaymentsReceived > 0 {
			return domain.ErrLoanHasPayments
		}
		if target != domain.LoanStatusPendingApproval && loan.ApprovalDate == nil {
			now := s.now()
			loan.ApprovalDate = &now
		}
		loan.Status = target
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(websocket.LoanStatusChanged(loan))
	return loan, nil
}

// ForecloseInput describes an early settlement
type ForecloseInput struct {
	SettlementAmount *decimal.Decimal // agreed final amount, overrides the discount
	Discount         decimal.Decimal
	PaymentMethod    string
	Notes            *string
	Date             *time.Time
	BankDetails      *domain.BankDetails
}

// ForeclosureResult is the closed loan and the settlement payment that closed it
type ForeclosureResult struct {
	Loan    *domain.Loan        `json:"loan"`
	Payment *domain.LoanPayment `json:"payment"`
}

// ForecloseLoan settles an active loan early. The whole remaining balance is
// booked as principal on one settlement payment, interest stops accruing and
// the loan is closed.
func (s *LoanService) ForecloseLoan(ctx context.Context, id int32, input ForecloseInput) (*ForeclosureResult, error) {
	if input.PaymentMethod == "" {
		return nil, domain.ErrLoanPaymentMethodEmpty
	}
	if input.Discount.IsNegative() {
		return nil, domain.ErrSettlementNegative
	}
	if input.SettlementAmount != nil && input.SettlementAmount.IsNegative() {
		return nil, domain.ErrSettlementNegative
	}

	now := s.now()
	settledOn := now
	if input.Date != nil {
		settledOn = *input.Date
	}

	result := &ForeclosureResult{}
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		loan, err := s.loanRepo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if loan.Status != domain.LoanStatusActive {
			return domain.ErrLoanNotActive
		}

		prior := loan.RemainingBalance
		discount := input.Discount.Round(2)
		final := prior.Sub(discount).Round(2)
		if input.SettlementAmount != nil {
			final = input.SettlementAmount.Round(2)
			discount = prior.Sub(final).Round(2)
		}
		if final.IsNegative() {
			return domain.ErrSettlementNegative
		}

		loan.Status = domain.LoanStatusClosed
		loan.RemainingBalance = decimal.Zero
		loan.Settlement = &domain.Settlement{
			Balance:       prior,
			Amount:        final,
			Discount:      discount,
			PaymentMethod: input.PaymentMethod,
			Notes:         input.Notes,
			Date:          settledOn,
			BankDetails:   input.BankDetails,
		}

		payment := &domain.LoanPayment{
			LoanID:              loan.ID,
			CustomerID:          loan.CustomerID,
			PaymentNumber:       loan.PaymentsReceived + 1,
			Kind:                domain.PaymentKindSettlement,
			AmountPaid:          final,
			PrincipalPortion:    prior,
			InterestPortion:     decimal.Zero,
			BalanceAfterPayment: decimal.Zero,
			PaymentMethod:       input.PaymentMethod,
			PaymentDate:         settledOn,
			Notes:               input.Notes,
			BankDetails:         input.BankDetails,
			CreatedAt:           now,
		}

		if result.Loan, err = s.loanRepo.Update(ctx, loan); err != nil {
			return err
		}
		result.Payment, err = s.paymentRepo.Create(ctx, payment)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLoanTransition(string(domain.LoanStatusClosed))
	s.metrics.RecordPayment(string(domain.PaymentKindSettlement))
	s.publishEvent(websocket.LoanForeclosed(result))
	return result, nil
}

// GetLoan retrieves a loan by ID
func (s *LoanService) GetLoan(ctx context.Context, id int32) (*domain.Loan, error) {
	return s.loanRepo.GetByID(ctx, id)
}

// ListLoans retrieves loans matching the filter
func (s *LoanService) ListLoans(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, domain.NewError(domain.ErrInvalidInput, "unknown loan status")
	}
	return s.loanRepo.List(ctx, filter)
}
