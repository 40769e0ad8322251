package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

type loanFixture struct {
	service      *LoanService
	transactor   *testutil.MockTransactor
	loanRepo     *testutil.MockLoanRepository
	customerRepo *testutil.MockCustomerRepository
	paymentRepo  *testutil.MockLoanPaymentRepository
	sequenceRepo *testutil.MockSequenceRepository
	lenderRepo   *testutil.MockLenderRepository
	publisher    *testutil.MockEventPublisher
}

func newLoanFixture() *loanFixture {
	f := &loanFixture{
		transactor:   testutil.NewMockTransactor(),
		loanRepo:     testutil.NewMockLoanRepository(),
		customerRepo: testutil.NewMockCustomerRepository(),
		paymentRepo:  testutil.NewMockLoanPaymentRepository(),
		sequenceRepo: testutil.NewMockSequenceRepository(),
		lenderRepo:   testutil.NewMockLenderRepository(),
		publisher:    testutil.NewMockEventPublisher(),
	}
	f.service = NewLoanService(f.transactor, f.loanRepo, f.customerRepo, f.paymentRepo, f.sequenceRepo, f.lenderRepo)
	f.service.SetEventPublisher(f.publisher)
	f.service.now = func() time.Time { return fixedNow }
	f.customerRepo.AddCustomer(&domain.Customer{ID: 1, Name: "Asha Rao", Phone: "555-0101"})
	return f
}

func standardTerms() LoanTermsInput {
	return LoanTermsInput{
		CustomerID:   1,
		Principal:    dec("100000"),
		MonthlyRate:  dec("12"),
		Tenure:       12,
		InterestType: domain.InterestTypeSimple,
		StartDate:    time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

// activeLoan stores an active loan built from the standard terms
func (f *loanFixture) activeLoan(t *testing.T) *domain.Loan {
	t.Helper()
	input := standardTerms()
	est, err := CalculateLoanEstimate(input.estimateInput())
	require.NoError(t, err)

	loan := &domain.Loan{ID: 7, LoanNumber: "LN-2025-0007", Status: domain.LoanStatusActive}
	applyTerms(loan, input, est)
	approved := fixedNow.Add(-24 * time.Hour)
	loan.ApprovalDate = &approved
	f.loanRepo.AddLoan(loan)
	return loan
}

func TestCreateLoan_Success(t *testing.T) {
	f := newLoanFixture()

	loan, err := f.service.CreateLoan(context.Background(), standardTerms())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if loan.LoanNumber != "LN-2025-0001" {
		t.Errorf("Expected loan number LN-2025-0001, got %s", loan.LoanNumber)
	}
	if loan.Status != domain.LoanStatusPendingApproval {
		t.Errorf("Expected status pending_approval, got %s", loan.Status)
	}
	if !loan.MonthlyEMI.Equal(dec("16143.68")) {
		t.Errorf("Expected EMI 16143.68, got %s", loan.MonthlyEMI)
	}
	if !loan.RemainingBalance.Equal(loan.TotalAmountPayable) {
		t.Errorf("Expected remaining balance %s, got %s", loan.TotalAmountPayable, loan.RemainingBalance)
	}
	if loan.PaymentsReceived != 0 {
		t.Errorf("Expected 0 payments received, got %d", loan.PaymentsReceived)
	}
	if loan.ApprovalDate != nil {
		t.Error("Expected no approval date on a new loan")
	}
	if f.transactor.Calls != 1 {
		t.Errorf("Expected creation inside one transaction, got %d", f.transactor.Calls)
	}
	assert.Equal(t, []string{"loan.created"}, f.publisher.Types())
}

func TestCreateLoan_MatchesEstimate(t *testing.T) {
	inputs := []LoanTermsInput{
		standardTerms(),
		{CustomerID: 1, Principal: dec("7500.55"), MonthlyRate: dec("3.25"), Tenure: 18, InterestType: domain.InterestTypeCompound, StartDate: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)},
		{CustomerID: 1, Principal: dec("1000"), MonthlyRate: decimal.Zero, Tenure: 3, InterestType: domain.InterestTypeSimple, StartDate: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
	}

	for _, input := range inputs {
		f := newLoanFixture()
		est, err := CalculateLoanEstimate(input.estimateInput())
		require.NoError(t, err)

		loan, err := f.service.CreateLoan(context.Background(), input)
		require.NoError(t, err)

		assert.True(t, est.MonthlyEMI.Equal(loan.MonthlyEMI))
		assert.True(t, est.TotalAmountPayable.Equal(loan.TotalAmountPayable))
		assert.True(t, est.TotalInterestAmount.Equal(loan.TotalInterestAmount))
		assert.Equal(t, est.EndDate, loan.EndDate)
		require.Len(t, loan.Schedule, len(est.Schedule))
		for i := range est.Schedule {
			assert.True(t, est.Schedule[i].Balance.Equal(loan.Schedule[i].Balance), "month %d", i+1)
			assert.True(t, est.Schedule[i].Interest.Equal(loan.Schedule[i].Interest), "month %d", i+1)
			assert.Equal(t, est.Schedule[i].DueDate, loan.Schedule[i].DueDate)
		}
	}
}

func TestCreateLoan_SequentialNumbers(t *testing.T) {
	f := newLoanFixture()
	f.lenderRepo.Lender = &domain.Lender{ID: 1, BusinessName: "Rao Finance", LoanPrefix: "RF", InvoicePrefix: "INV", DocumentPrefix: "DOC"}

	first, err := f.service.CreateLoan(context.Background(), standardTerms())
	require.NoError(t, err)
	second, err := f.service.CreateLoan(context.Background(), standardTerms())
	require.NoError(t, err)

	assert.Equal(t, "RF-2025-0001", first.LoanNumber)
	assert.Equal(t, "RF-2025-0002", second.LoanNumber)
}

func TestCreateLoan_CustomerNotFound(t *testing.T) {
	f := newLoanFixture()
	input := standardTerms()
	input.CustomerID = 99

	_, err := f.service.CreateLoan(context.Background(), input)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if len(f.loanRepo.Loans) != 0 {
		t.Error("Expected no loan to be stored")
	}
}

func TestCreateLoan_InvalidTerms(t *testing.T) {
	f := newLoanFixture()
	input := standardTerms()
	input.Tenure = 0

	_, err := f.service.CreateLoan(context.Background(), input)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if f.transactor.Calls != 0 {
		t.Error("Expected validation to fail before any write")
	}
}

func TestCreateLoan_MissingCustomer(t *testing.T) {
	f := newLoanFixture()
	input := standardTerms()
	input.CustomerID = 0

	_, err := f.service.CreateLoan(context.Background(), input)
	assert.ErrorIs(t, err, domain.ErrLoanCustomerRequired)
}

func TestCreateLoan_SequenceFailureLeavesNothing(t *testing.T) {
	f := newLoanFixture()
	f.sequenceRepo.NextFn = func(ctx context.Context, name string, year int) (int64, error) {
		return 0, errors.New("connection reset")
	}

	_, err := f.service.CreateLoan(context.Background(), standardTerms())
	require.Error(t, err)
	assert.Empty(t, f.loanRepo.Loans)
	assert.Empty(t, f.publisher.Events)
}

func TestUpdateLoan_RecomputesTerms(t *testing.T) {
	f := newLoanFixture()
	loan, err := f.service.CreateLoan(context.Background(), standardTerms())
	require.NoError(t, err)

	input := standardTerms()
	input.Principal = dec("10000")
	input.MonthlyRate = dec("1")

	updated, err := f.service.UpdateLoan(context.Background(), loan.ID, input)
	require.NoError(t, err)

	assert.True(t, updated.MonthlyEMI.Equal(dec("888.49")), "EMI %s", updated.MonthlyEMI)
	assert.True(t, updated.RemainingBalance.Equal(dec("10661.88")), "remaining %s", updated.RemainingBalance)
	assert.Equal(t, loan.LoanNumber, updated.LoanNumber)
	assert.Equal(t, []int32{loan.ID}, f.loanRepo.LockedIDs)
}

func TestUpdateLoan_NotPending(t *testing.T) {
	f := newLoanFixture()
	loan := f.activeLoan(t)

	_, err := f.service.UpdateLoan(context.Background(), loan.ID, standardTerms())
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState, got %v", err)
	}
}

func TestApproveLoan(t *testing.T) {
	f := newLoanFixture()
	loan, err := f.service.CreateLoan(context.Background(), standardTerms())
	require.NoError(t, err)

	approved, err := f.service.ApproveLoan(context.Background(), loan.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.LoanStatusActive, approved.Status)
	require.NotNil(t, approved.ApprovalDate)
	assert.Equal(t, fixedNow, *approved.ApprovalDate)
	assert.Equal(t, domain.LoanStatusActive, f.loanRepo.Stored(loan.ID).Status)
	assert.Equal(t, []string{"loan.created", "loan.approved"}, f.publisher.Types())

	_, err = f.service.ApproveLoan(context.Background(), loan.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestApproveLoan_NotFound(t *testing.T) {
	f := newLoanFixture()

	_, err := f.service.ApproveLoan(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelLoan(t *testing.T) {
	f := newLoanFixture()
	loan, err := f.service.CreateLoan(context.Background(), standardTerms())
	require.NoError(t, err)

	cancelled, err := f.service.CancelLoan(context.Background(), loan.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.LoanStatusClosed, cancelled.Status)
	assert.Nil(t, cancelled.Settlement)
	assert.True(t, cancelled.RemainingBalance.Equal(loan.RemainingBalance))
	assert.Empty(t, f.paymentRepo.Payments)
}

func TestCancelLoan_ActiveLoanRejected(t *testing.T) {
	f := newLoanFixture()
	loan := f.activeLoan(t)

	_, err := f.service.CancelLoan(context.Background(), loan.ID)
	assert.ErrorIs(t, err, domain.ErrLoanNotPending)
	assert.Equal(t, domain.LoanStatusActive, f.loanRepo.Stored(loan.ID).Status)
}

func TestUpdateLoanStatus(t *testing.T) {
	tests := []struct {
		name     string
		from     domain.LoanStatus
		payments int32
		target   domain.LoanStatus
		wantErr  error
	}{
		{"pending to approved", domain.LoanStatusPendingApproval, 0, domain.LoanStatusApproved, nil},
		{"approved to active", domain.LoanStatusApproved, 0, domain.LoanStatusActive, nil},
		{"active back to pending without payments", domain.LoanStatusActive, 0, domain.LoanStatusPendingApproval, nil},
		{"active back to pending with payments", domain.LoanStatusActive, 2, domain.LoanStatusPendingApproval, domain.ErrInvalidOperation},
		{"manual completion", domain.LoanStatusActive, 0, domain.LoanStatusCompleted, domain.ErrInvalidInput},
		{"manual closure", domain.LoanStatusActive, 0, domain.LoanStatusClosed, domain.ErrInvalidInput},
		{"reopen closed loan", domain.LoanStatusClosed, 0, domain.LoanStatusActive, domain.ErrInvalidState},
		{"reopen completed loan", domain.LoanStatusCompleted, 0, domain.LoanStatusApproved, domain.ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLoanFixture()
			f.loanRepo.AddLoan(&domain.Loan{ID: 3, Status: tt.from, PaymentsReceived: tt.payments, RemainingBalance: dec("500")})

			loan, err := f.service.UpdateLoanStatus(context.Background(), 3, tt.target)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, f.loanRepo.Stored(3).Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.target, loan.Status)
			assert.True(t, loan.RemainingBalance.Equal(dec("500")))
			if tt.target != domain.LoanStatusPendingApproval {
				assert.NotNil(t, loan.ApprovalDate)
			}
		})
	}
}

func TestUpdateLoanStatus_KeepsExistingApprovalDate(t *testing.T) {
	f := newLoanFixture()
	original := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	f.loanRepo.AddLoan(&domain.Loan{ID: 3, Status: domain.LoanStatusApproved, ApprovalDate: &original})

	loan, err := f.service.UpdateLoanStatus(context.Background(), 3, domain.LoanStatusActive)
	require.NoError(t, err)
	assert.Equal(t, original, *loan.ApprovalDate)
}

func TestForecloseLoan_WithDiscount(t *testing.T) {
	f := newLoanFixture()
	loan := f.activeLoan(t)
	prior := loan.RemainingBalance

	result, err := f.service.ForecloseLoan(context.Background(), loan.ID, ForecloseInput{
		Discount:      dec("1000"),
		PaymentMethod: "bank_transfer",
	})
	require.NoError(t, err)

	closed := result.Loan
	assert.Equal(t, domain.LoanStatusClosed, closed.Status)
	assert.True(t, closed.RemainingBalance.IsZero())
	require.NotNil(t, closed.Settlement)
	assert.True(t, closed.Settlement.Balance.Equal(prior))
	assert.True(t, closed.Settlement.Amount.Equal(prior.Sub(dec("1000"))), "amount %s", closed.Settlement.Amount)
	assert.True(t, closed.Settlement.Discount.Equal(dec("1000")))
	assert.Equal(t, fixedNow, closed.Settlement.Date)

	payment := result.Payment
	assert.Equal(t, domain.PaymentKindSettlement, payment.Kind)
	assert.True(t, payment.PrincipalPortion.Equal(prior))
	assert.True(t, payment.InterestPortion.IsZero())
	assert.True(t, payment.BalanceAfterPayment.IsZero())
	assert.True(t, payment.AmountPaid.Equal(closed.Settlement.Amount))
	assert.Equal(t, int32(1), payment.PaymentNumber)
	assert.Len(t, f.paymentRepo.Payments, 1)
	assert.Equal(t, []string{"loan.foreclosed"}, f.publisher.Types())
}

func TestForecloseLoan_WithSettlementAmount(t *testing.T) {
	f := newLoanFixture()
	loan := f.activeLoan(t)
	settlement := dec("150000")
	when := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	result, err := f.service.ForecloseLoan(context.Background(), loan.ID, ForecloseInput{
		SettlementAmount: &settlement,
		Discount:         dec("5"),
		PaymentMethod:    "cash",
		Date:             &when,
	})
	require.NoError(t, err)

	assert.True(t, result.Loan.Settlement.Amount.Equal(settlement))
	assert.True(t, result.Loan.Settlement.Discount.Equal(dec("43724.16")), "discount %s", result.Loan.Settlement.Discount)
	assert.Equal(t, when, result.Payment.PaymentDate)
}

func TestForecloseLoan_DiscountExceedsBalance(t *testing.T) {
	f := newLoanFixture()
	loan := f.activeLoan(t)

	_, err := f.service.ForecloseLoan(context.Background(), loan.ID, ForecloseInput{
		Discount:      dec("999999"),
		PaymentMethod: "cash",
	})
	assert.ErrorIs(t, err, domain.ErrSettlementNegative)
	assert.Equal(t, domain.LoanStatusActive, f.loanRepo.Stored(loan.ID).Status)
	assert.Empty(t, f.paymentRepo.Payments)
}

func TestForecloseLoan_NotActive(t *testing.T) {
	for _, status := range []domain.LoanStatus{domain.LoanStatusPendingApproval, domain.LoanStatusApproved, domain.LoanStatusClosed, domain.LoanStatusCompleted} {
		f := newLoanFixture()
		f.loanRepo.AddLoan(&domain.Loan{ID: 5, Status: status, RemainingBalance: dec("100")})

		_, err := f.service.ForecloseLoan(context.Background(), 5, ForecloseInput{PaymentMethod: "cash"})
		if !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("%s: expected ErrInvalidState, got %v", status, err)
		}
	}
}

func TestForecloseLoan_MethodRequired(t *testing.T) {
	f := newLoanFixture()
	loan := f.activeLoan(t)

	_, err := f.service.ForecloseLoan(context.Background(), loan.ID, ForecloseInput{})
	assert.ErrorIs(t, err, domain.ErrLoanPaymentMethodEmpty)
}

func TestListLoans_UnknownStatus(t *testing.T) {
	f := newLoanFixture()

	_, err := f.service.ListLoans(context.Background(), domain.LoanFilter{Status: "archived"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestListLoans_FiltersByStatus(t *testing.T) {
	f := newLoanFixture()
	f.loanRepo.AddLoan(&domain.Loan{ID: 1, Status: domain.LoanStatusActive})
	f.loanRepo.AddLoan(&domain.Loan{ID: 2, Status: domain.LoanStatusClosed})

	loans, err := f.service.ListLoans(context.Background(), domain.LoanFilter{Status: domain.LoanStatusActive})
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, int32(1), loans[0].ID)
}
