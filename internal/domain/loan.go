package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrLoanNotFound          = NewError(ErrNotFound, "loan not found")
	ErrLoanPrincipalInvalid  = NewError(ErrInvalidInput, "principal must be at least 1")
	ErrLoanRateInvalid       = NewError(ErrInvalidInput, "monthly interest rate must be between 0 and 100")
	ErrLoanTenureInvalid     = NewError(ErrInvalidInput, "loan duration must be between 1 and 360 months")
	ErrLoanInterestType      = NewError(ErrInvalidInput, "interest type must be simple or compound")
	ErrLoanEMIInvalid        = NewError(ErrInvalidInput, "monthly EMI must be positive")
	ErrLoanEMIBelowInterest  = NewError(ErrInvalidInput, "monthly EMI must exceed the first month's interest")
	ErrLoanStartDateRequired = NewError(ErrInvalidInput, "start date is required")
	ErrLoanCustomerRequired  = NewError(ErrInvalidInput, "customer is required")
	ErrLoanNotPending        = NewError(ErrInvalidState, "loan is not pending approval")
	ErrLoanNotActive         = NewError(ErrInvalidState, "loan is not active")
	ErrLoanNotPayable        = NewError(ErrInvalidState, "payments can only be recorded on approved or active loans")
	ErrLoanTerminal          = NewError(ErrInvalidState, "loan is completed or closed")
	ErrLoanStatusTarget      = NewError(ErrInvalidInput, "status must be pending_approval, approved or active")
	ErrLoanHasPayments       = NewError(ErrInvalidOperation, "cannot revert to pending approval after payments were received")
	ErrLoanAlreadySettled    = NewError(ErrAlreadySettled, "loan has no remaining balance")
	ErrSettlementNegative    = NewError(ErrInvalidInput, "settlement amount cannot be negative")
)

type LoanStatus string

const (
	LoanStatusPendingApproval LoanStatus = "pending_approval"
	LoanStatusApproved        LoanStatus = "approved"
	LoanStatusActive          LoanStatus = "active"
	LoanStatusCompleted       LoanStatus = "completed"
	LoanStatusClosed          LoanStatus = "closed"
)

// IsValid reports whether s is a known loan status.
func (s LoanStatus) IsValid() bool {
	switch s {
	case LoanStatusPendingApproval, LoanStatusApproved, LoanStatusActive, LoanStatusCompleted, LoanStatusClosed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible from s.
func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusCompleted || s == LoanStatusClosed
}

// IsManualTarget reports whether s may be set through a manual status override.
func (s LoanStatus) IsManualTarget() bool {
	return s == LoanStatusPendingApproval || s == LoanStatusApproved || s == LoanStatusActive
}

type InterestType string

const (
	InterestTypeSimple   InterestType = "simple"
	InterestTypeCompound InterestType = "compound"
)

func (t InterestType) IsValid() bool {
	return t == InterestTypeSimple || t == InterestTypeCompound
}

// ScheduleEntry is one projected installment of an amortization schedule.
type ScheduleEntry struct {
	Month     int32           `json:"month"`
	EMI       decimal.Decimal `json:"emi"`
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Balance   decimal.Decimal `json:"balance"`
	DueDate   time.Time       `json:"dueDate"`
}

// Settlement holds the foreclosure details of a loan closed early.
type Settlement struct {
	Balance       decimal.Decimal `json:"balance"`
	Amount        decimal.Decimal `json:"amount"`
	Discount      decimal.Decimal `json:"discount"`
	PaymentMethod string          `json:"paymentMethod"`
	Notes         *string         `json:"notes,omitempty"`
	Date          time.Time       `json:"date"`
	BankDetails   *BankDetails    `json:"bankDetails,omitempty"`
}

type Loan struct {
	ID                  int32           `json:"id"`
	LoanNumber          string          `json:"loanNumber"`
	CustomerID          int32           `json:"customerId"`
	Principal           decimal.Decimal `json:"principal"`
	MonthlyInterestRate decimal.Decimal `json:"monthlyInterestRate"`
	DurationMonths      int32           `json:"loanDurationMonths"`
	InterestType        InterestType    `json:"interestType"`
	StartDate           time.Time       `json:"startDate"`
	EndDate             time.Time       `json:"endDate"`
	MonthlyEMI          decimal.Decimal `json:"monthlyEmi"`
	EMIOverride         bool            `json:"emiOverride"`
	TotalAmountPayable  decimal.Decimal `json:"totalAmountPayable"`
	TotalInterestAmount decimal.Decimal `json:"totalInterestAmount"`
	RemainingBalance    decimal.Decimal `json:"remainingBalance"`
	PaymentsReceived    int32           `json:"paymentsReceived"`
	Schedule            []ScheduleEntry `json:"amortizationSchedule"`
	Status              LoanStatus      `json:"status"`
	ApprovalDate        *time.Time      `json:"approvalDate,omitempty"`
	Purpose             *string         `json:"purpose,omitempty"`
	Notes               *string         `json:"notes,omitempty"`
	Settlement          *Settlement     `json:"settlement,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// ValidateTerms checks the numeric ranges accepted for a loan.
func ValidateTerms(principal, rate decimal.Decimal, tenure int32, interestType InterestType) error {
	if principal.LessThan(decimal.NewFromInt(MinLoanPrincipal)) {
		return ErrLoanPrincipalInvalid
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(MaxMonthlyRate)) {
		return ErrLoanRateInvalid
	}
	if tenure < MinTenureMonths || tenure > MaxTenureMonths {
		return ErrLoanTenureInvalid
	}
	if !interestType.IsValid() {
		return ErrLoanInterestType
	}
	return nil
}

// NextScheduleEntry returns the next unpaid installment, or nil once the
// schedule is exhausted.
func (l *Loan) NextScheduleEntry() *ScheduleEntry {
	idx := int(l.PaymentsReceived)
	if idx < 0 || idx >= len(l.Schedule) {
		return nil
	}
	return &l.Schedule[idx]
}

// IsPayable reports whether payments may be recorded against the loan.
func (l *Loan) IsPayable() bool {
	return l.Status == LoanStatusActive || l.Status == LoanStatusApproved
}

// LoanFilter narrows List results. Zero values mean no filter.
type LoanFilter struct {
	Status     LoanStatus
	CustomerID int32
}

type LoanRepository interface {
	Create(ctx context.Context, loan *Loan) (*Loan, error)
	GetByID(ctx context.Context, id int32) (*Loan, error)
	// GetByIDForUpdate locks the loan row for the enclosing transaction.
	GetByIDForUpdate(ctx context.Context, id int32) (*Loan, error)
	List(ctx context.Context, filter LoanFilter) ([]*Loan, error)
	ListInvoiceable(ctx context.Context) ([]*Loan, error)
	Update(ctx context.Context, loan *Loan) (*Loan, error)
}
