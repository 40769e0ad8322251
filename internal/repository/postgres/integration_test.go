package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/database"
	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/service"
	"github.com/dafibh/lendora/lendora-backend/internal/util"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// setupTestDatabase starts a PostgreSQL container and applies the migrations.
// Set LENDORA_INTEGRATION=1 to run these tests; they need a Docker daemon.
func setupTestDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("LENDORA_INTEGRATION") == "" || testing.Short() {
		t.Skip("set LENDORA_INTEGRATION=1 to run database integration tests")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("lendora_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		postgres.BasicWaitStrategies(),
		testcontainers.WithLabels(map[string]string{"test": "lendora-repository", "test-name": t.Name()}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Warning: failed to terminate test container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	version, err := database.MigrateUp(connStr)
	require.NoError(t, err)
	require.Equal(t, uint(1), version)

	pool, err := database.NewPool(ctx, connStr, 10)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

type backOffice struct {
	customers *CustomerRepository
	loans     *service.LoanService
	payments  *service.LoanPaymentService
	invoices  *service.InvoiceService
	invRepo   *InvoiceRepository
}

func newBackOffice(pool *pgxpool.Pool) *backOffice {
	tx := NewTransactor(pool)
	customerRepo := NewCustomerRepository(pool)
	loanRepo := NewLoanRepository(pool)
	paymentRepo := NewLoanPaymentRepository(pool)
	invoiceRepo := NewInvoiceRepository(pool)
	sequenceRepo := NewSequenceRepository(pool)
	lenderRepo := NewLenderRepository(pool)

	return &backOffice{
		customers: customerRepo,
		loans:     service.NewLoanService(tx, loanRepo, customerRepo, paymentRepo, sequenceRepo, lenderRepo),
		payments:  service.NewLoanPaymentService(tx, paymentRepo, loanRepo),
		invoices:  service.NewInvoiceService(tx, invoiceRepo, loanRepo, sequenceRepo, lenderRepo),
		invRepo:   invoiceRepo,
	}
}

func (b *backOffice) activeLoan(t *testing.T, ctx context.Context) *domain.Loan {
	t.Helper()
	customer, err := b.customers.Create(ctx, &domain.Customer{Name: "Asha Rao", Phone: "555-0101"})
	require.NoError(t, err)

	loan, err := b.loans.CreateLoan(ctx, service.LoanTermsInput{
		CustomerID:   customer.ID,
		Principal:    decimal.NewFromInt(100000),
		MonthlyRate:  decimal.NewFromInt(12),
		Tenure:       12,
		InterestType: domain.InterestTypeSimple,
		StartDate:    util.DateOnly(time.Now()),
	})
	require.NoError(t, err)

	loan, err = b.loans.UpdateLoanStatus(ctx, loan.ID, domain.LoanStatusActive)
	require.NoError(t, err)
	return loan
}

func TestIntegration_LoanRoundTrip(t *testing.T) {
	pool := setupTestDatabase(t)
	ctx := context.Background()
	b := newBackOffice(pool)

	loan := b.activeLoan(t, ctx)
	assert.Equal(t, "16143.68", loan.MonthlyEMI.StringFixed(2))
	assert.Len(t, loan.Schedule, 12)

	reloaded, err := b.loans.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.RemainingBalance.Equal(decimal.RequireFromString("193724.16")))
	assert.True(t, reloaded.Schedule[0].Interest.Equal(loan.Schedule[0].Interest))
	assert.Equal(t, loan.Schedule[0].DueDate, reloaded.Schedule[0].DueDate)
}

func TestIntegration_RecordAndReversePayment(t *testing.T) {
	pool := setupTestDatabase(t)
	ctx := context.Background()
	b := newBackOffice(pool)
	loan := b.activeLoan(t, ctx)

	result, err := b.payments.RecordPayment(ctx, loan.ID, service.RecordPaymentInput{
		Amount:        decimal.NewFromInt(20000),
		PaymentMethod: "bank_transfer",
		PaymentDate:   util.DateOnly(time.Now()),
		BankDetails:   &domain.BankDetails{BankName: "First Bank", TransactionID: "TX-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), result.Payment.PaymentNumber)
	assert.Equal(t, "First Bank", result.Payment.BankDetails.BankName)
	assert.Equal(t, "173724.16", result.Loan.RemainingBalance.StringFixed(2))

	restored, err := b.payments.ReversePayment(ctx, loan.ID, result.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "193724.16", restored.RemainingBalance.StringFixed(2))
	assert.Equal(t, int32(0), restored.PaymentsReceived)

	payments, err := b.payments.GetPaymentsByLoanID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestIntegration_ConcurrentPaymentsSerialize(t *testing.T) {
	pool := setupTestDatabase(t)
	ctx := context.Background()
	b := newBackOffice(pool)
	loan := b.activeLoan(t, ctx)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.payments.RecordPayment(ctx, loan.ID, service.RecordPaymentInput{
				Amount:        decimal.NewFromInt(1000),
				PaymentMethod: "cash",
				PaymentDate:   util.DateOnly(time.Now()),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := b.loans.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(5), final.PaymentsReceived)
	assert.Equal(t, "188724.16", final.RemainingBalance.StringFixed(2))

	payments, err := b.payments.GetPaymentsByLoanID(ctx, loan.ID)
	require.NoError(t, err)
	for i, p := range payments {
		assert.Equal(t, int32(i+1), p.PaymentNumber)
	}
}

func TestIntegration_InvoiceRunIsIdempotent(t *testing.T) {
	pool := setupTestDatabase(t)
	ctx := context.Background()
	b := newBackOffice(pool)
	loan := b.activeLoan(t, ctx)

	first, err := b.invoices.RunInvoiceGeneration(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Generated)
	assert.Empty(t, first.Errors)

	second, err := b.invoices.RunInvoiceGeneration(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Generated)
	assert.Equal(t, 1, second.Skipped)

	invoices, err := b.invoices.ListInvoices(ctx, domain.InvoiceFilter{LoanID: loan.ID})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, domain.InvoiceStatusPending, invoices[0].Status)
	assert.Equal(t, loan.Schedule[0].DueDate, invoices[0].DueDate)

	_, err = b.invRepo.Create(ctx, &domain.Invoice{
		InvoiceNumber: "INV-DUPLICATE",
		LoanID:        loan.ID,
		CustomerID:    loan.CustomerID,
		PeriodMonth:   invoices[0].PeriodMonth,
		PeriodYear:    invoices[0].PeriodYear,
		DueDate:       invoices[0].DueDate,
		Status:        domain.InvoiceStatusPending,
	})
	assert.ErrorIs(t, err, domain.ErrInvoiceExists)
}

func TestIntegration_MarkOverdue(t *testing.T) {
	pool := setupTestDatabase(t)
	ctx := context.Background()
	b := newBackOffice(pool)
	loan := b.activeLoan(t, ctx)

	past := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	_, err := b.invRepo.Create(ctx, &domain.Invoice{
		InvoiceNumber: "INV-2024-0001",
		LoanID:        loan.ID,
		CustomerID:    loan.CustomerID,
		PeriodMonth:   1,
		PeriodYear:    2024,
		AmountDue:     decimal.NewFromInt(100),
		BalanceDue:    decimal.NewFromInt(100),
		DueDate:       past,
		Status:        domain.InvoiceStatusIssued,
	})
	require.NoError(t, err)

	n, err := b.invRepo.MarkOverdue(ctx, past)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = b.invRepo.MarkOverdue(ctx, past.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIntegration_SequencesAndLender(t *testing.T) {
	pool := setupTestDatabase(t)
	ctx := context.Background()

	seq := NewSequenceRepository(pool)
	for want := int64(1); want <= 3; want++ {
		got, err := seq.Next(ctx, "LN", 2025)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	other, err := seq.Next(ctx, "LN", 2026)
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)

	lenders := NewLenderRepository(pool)
	first, err := lenders.GetOrCreate(ctx, domain.DefaultLender())
	require.NoError(t, err)
	second, err := lenders.GetOrCreate(ctx, domain.DefaultLender())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}
