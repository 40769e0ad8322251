package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/middleware"
	"github.com/dafibh/lendora/lendora-backend/internal/service"
	"github.com/dafibh/lendora/lendora-backend/internal/testutil"
	"github.com/dafibh/lendora/lendora-backend/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const testStaffID = "auth0|staff-1"

// Helper to set up an authenticated request context
func setupAuthContext(c echo.Context, staffID string) {
	claims := &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{Subject: staffID},
		CustomClaims:     &middleware.CustomClaims{Email: "staff@lendora.app", Name: "Staff"},
	}
	ctx := context.WithValue(c.Request().Context(), middleware.ClaimsKey, claims)
	ctx = context.WithValue(ctx, middleware.StaffIDKey, staffID)
	c.SetRequest(c.Request().WithContext(ctx))
}

// newContext builds an authenticated echo context for a JSON request
func newContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	setupAuthContext(c, testStaffID)
	return c, rec
}

func withParams(c echo.Context, pairs ...string) {
	var names, values []string
	for i := 0; i+1 < len(pairs); i += 2 {
		names = append(names, pairs[i])
		values = append(values, pairs[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// backOffice wires real services over the in-memory repositories
type backOffice struct {
	transactor   *testutil.MockTransactor
	loanRepo     *testutil.MockLoanRepository
	paymentRepo  *testutil.MockLoanPaymentRepository
	invoiceRepo  *testutil.MockInvoiceRepository
	customerRepo *testutil.MockCustomerRepository
	lenderRepo   *testutil.MockLenderRepository
	sequenceRepo *testutil.MockSequenceRepository
	documentRepo *testutil.MockDocumentRepository
	renderer     *testutil.MockDocumentRenderer

	loans     *service.LoanService
	payments  *service.LoanPaymentService
	invoices  *service.InvoiceService
	customers *service.CustomerService
	lender    *service.LenderService
	documents *service.DocumentService
}

func newBackOffice() *backOffice {
	b := &backOffice{
		transactor:   testutil.NewMockTransactor(),
		loanRepo:     testutil.NewMockLoanRepository(),
		paymentRepo:  testutil.NewMockLoanPaymentRepository(),
		invoiceRepo:  testutil.NewMockInvoiceRepository(),
		customerRepo: testutil.NewMockCustomerRepository(),
		lenderRepo:   testutil.NewMockLenderRepository(),
		sequenceRepo: testutil.NewMockSequenceRepository(),
		documentRepo: testutil.NewMockDocumentRepository(),
		renderer:     &testutil.MockDocumentRenderer{},
	}
	b.loans = service.NewLoanService(b.transactor, b.loanRepo, b.customerRepo, b.paymentRepo, b.sequenceRepo, b.lenderRepo)
	b.payments = service.NewLoanPaymentService(b.transactor, b.paymentRepo, b.loanRepo)
	b.invoices = service.NewInvoiceService(b.transactor, b.invoiceRepo, b.loanRepo, b.sequenceRepo, b.lenderRepo)
	b.customers = service.NewCustomerService(b.customerRepo, b.loanRepo)
	b.lender = service.NewLenderService(b.lenderRepo, nil)
	b.documents = service.NewDocumentService(service.DocumentServiceDeps{
		LoanRepo:     b.loanRepo,
		CustomerRepo: b.customerRepo,
		PaymentRepo:  b.paymentRepo,
		InvoiceRepo:  b.invoiceRepo,
		LenderRepo:   b.lenderRepo,
		SequenceRepo: b.sequenceRepo,
		DocumentRepo: b.documentRepo,
		Renderer:     b.renderer,
	})
	b.customerRepo.AddCustomer(&domain.Customer{ID: 1, Name: "Asha Rao", Phone: "555-0101"})
	return b
}

// addActiveLoan stores an active 1000 loan at 10% with two 576.19 installments
func (b *backOffice) addActiveLoan(id int32) *domain.Loan {
	due1 := mustDate("2099-02-01")
	due2 := mustDate("2099-03-01")
	loan := &domain.Loan{
		ID:                  id,
		LoanNumber:          "LN-2099-0001",
		CustomerID:          1,
		Principal:           dec("1000"),
		MonthlyInterestRate: dec("10"),
		DurationMonths:      2,
		InterestType:        domain.InterestTypeSimple,
		StartDate:           mustDate("2099-01-01"),
		EndDate:             due2,
		MonthlyEMI:          dec("576.19"),
		TotalAmountPayable:  dec("1152.38"),
		TotalInterestAmount: dec("152.38"),
		RemainingBalance:    dec("1152.38"),
		Status:              domain.LoanStatusActive,
		Schedule: []domain.ScheduleEntry{
			{Month: 1, EMI: dec("576.19"), Principal: dec("476.19"), Interest: dec("100.00"), Balance: dec("523.81"), DueDate: due1},
			{Month: 2, EMI: dec("576.19"), Principal: dec("523.81"), Interest: dec("52.38"), Balance: dec("0"), DueDate: due2},
		},
	}
	b.loanRepo.AddLoan(loan)
	return loan
}

func mustDate(s string) time.Time {
	t, err := util.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}
