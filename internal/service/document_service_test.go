package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type documentFixture struct {
	service      *DocumentService
	loanRepo     *testutil.MockLoanRepository
	paymentRepo  *testutil.MockLoanPaymentRepository
	invoiceRepo  *testutil.MockInvoiceRepository
	documentRepo *testutil.MockDocumentRepository
	renderer     *testutil.MockDocumentRenderer
	store        *testutil.MockDocumentStore
}

func newDocumentFixture(withStore bool) *documentFixture {
	f := &documentFixture{
		loanRepo:     testutil.NewMockLoanRepository(),
		paymentRepo:  testutil.NewMockLoanPaymentRepository(),
		invoiceRepo:  testutil.NewMockInvoiceRepository(),
		documentRepo: testutil.NewMockDocumentRepository(),
		renderer:     &testutil.MockDocumentRenderer{},
	}
	customerRepo := testutil.NewMockCustomerRepository()
	customerRepo.AddCustomer(&domain.Customer{ID: 1, Name: "Asha Rao", Phone: "555-0101"})

	deps := DocumentServiceDeps{
		LoanRepo:     f.loanRepo,
		CustomerRepo: customerRepo,
		PaymentRepo:  f.paymentRepo,
		InvoiceRepo:  f.invoiceRepo,
		LenderRepo:   testutil.NewMockLenderRepository(),
		SequenceRepo: testutil.NewMockSequenceRepository(),
		DocumentRepo: f.documentRepo,
		Renderer:     f.renderer,
	}
	if withStore {
		f.store = testutil.NewMockDocumentStore()
		deps.Store = f.store
	}
	f.service = NewDocumentService(deps)
	f.service.now = func() time.Time { return fixedNow }

	f.loanRepo.AddLoan(&domain.Loan{
		ID:               1,
		LoanNumber:       "LN-2025-0001",
		CustomerID:       1,
		Status:           domain.LoanStatusActive,
		RemainingBalance: dec("900"),
	})
	return f
}

func TestGenerateDocument_Agreement(t *testing.T) {
	f := newDocumentFixture(true)

	doc, err := f.service.GenerateDocument(context.Background(), 1, DocumentRequest{Type: domain.DocumentAgreement})
	require.NoError(t, err)

	assert.Equal(t, "DOC-2025-0001", doc.Document.DocumentNumber)
	assert.Equal(t, "agreement-DOC-2025-0001.pdf", doc.Filename)
	assert.Equal(t, "application/pdf", doc.ContentType)
	require.NotNil(t, doc.Document.StorageKey)
	assert.Equal(t, "documents/LN-2025-0001/agreement-DOC-2025-0001.pdf", *doc.Document.StorageKey)
	assert.Equal(t, doc.Content, f.store.Objects[*doc.Document.StorageKey])

	require.Len(t, f.renderer.Rendered, 1)
	data := f.renderer.Rendered[0]
	assert.Equal(t, "Asha Rao", data.Customer.Name)
	assert.Equal(t, domain.DefaultLenderName, data.Lender.BusinessName)
	assert.Equal(t, fixedNow, data.GeneratedAt)

	docs, err := f.service.ListDocuments(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestGenerateDocument_WithoutStore(t *testing.T) {
	f := newDocumentFixture(false)

	doc, err := f.service.GenerateDocument(context.Background(), 1, DocumentRequest{Type: domain.DocumentStatement})
	require.NoError(t, err)
	assert.Nil(t, doc.Document.StorageKey)
	assert.NotEmpty(t, doc.Content)
}

func TestGenerateDocument_NumbersIncrease(t *testing.T) {
	f := newDocumentFixture(false)

	first, err := f.service.GenerateDocument(context.Background(), 1, DocumentRequest{Type: domain.DocumentAgreement})
	require.NoError(t, err)
	second, err := f.service.GenerateDocument(context.Background(), 1, DocumentRequest{Type: domain.DocumentStatement})
	require.NoError(t, err)

	assert.Equal(t, "DOC-2025-0001", first.Document.DocumentNumber)
	assert.Equal(t, "DOC-2025-0002", second.Document.DocumentNumber)
}

func TestGenerateDocument_NOCRequiresClosedLoan(t *testing.T) {
	f := newDocumentFixture(false)

	_, err := f.service.GenerateDocument(context.Background(), 1, DocumentRequest{Type: domain.DocumentNOC})
	assert.ErrorIs(t, err, domain.ErrDocumentNotAvailable)

	f.loanRepo.AddLoan(&domain.Loan{ID: 2, LoanNumber: "LN-2025-0002", CustomerID: 1, Status: domain.LoanStatusCompleted})
	_, err = f.service.GenerateDocument(context.Background(), 2, DocumentRequest{Type: domain.DocumentNOC})
	assert.NoError(t, err)
}

func TestGenerateDocument_SettlementCertificate(t *testing.T) {
	f := newDocumentFixture(false)

	_, err := f.service.GenerateDocument(context.Background(), 1, DocumentRequest{Type: domain.DocumentSettlementCertificate})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	f.loanRepo.AddLoan(&domain.Loan{
		ID:         3,
		CustomerID: 1,
		Status:     domain.LoanStatusClosed,
		Settlement: &domain.Settlement{Balance: dec("900"), Amount: dec("850"), Discount: dec("50"), PaymentMethod: "cash", Date: fixedNow},
	})
	doc, err := f.service.GenerateDocument(context.Background(), 3, DocumentRequest{Type: domain.DocumentSettlementCertificate})
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentSettlementCertificate, doc.Document.Type)
}

func TestGenerateDocument_Receipt(t *testing.T) {
	f := newDocumentFixture(false)

	_, err := f.service.GenerateDocument(context.Background(), 1, DocumentRequest{Type: domain.DocumentReceipt})
	assert.ErrorIs(t, err, domain.ErrDocumentPaymentNeeded)

	f.paymentRepo.AddPayment(&domain.LoanPayment{ID: 1, LoanID: 1, PaymentNumber: 1, AmountPaid: dec("100")})
	f.paymentRepo.AddPayment(&domain.LoanPayment{ID: 2, LoanID: 1, PaymentNumber: 2, AmountPaid: dec("200")})
	f.paymentRepo.AddPayment(&domain.LoanPayment{ID: 3, LoanID: 9, PaymentNumber: 1, AmountPaid: dec("300")})

	_, err = f.service.GenerateDocument(context.Background(), 1, DocumentRequest{Type: domain.DocumentReceipt})
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.renderer.Rendered[0].Payment.ID)

	first := int32(1)
	_, err = f.service.GenerateDocument(context.Background(), 1, DocumentRequest{Type: domain.DocumentReceipt, PaymentID: &first})
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.renderer.Rendered[1].Payment.ID)

	other := int32(3)
	_, err = f.service.GenerateDocument(context.Background(), 1, DocumentRequest{Type: domain.DocumentReceipt, PaymentID: &other})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGenerateDocument_Invoice(t *testing.T) {
	f := newDocumentFixture(false)
	f.invoiceRepo.AddInvoice(&domain.Invoice{ID: 5, LoanID: 1, InvoiceNumber: "INV-2025-0005", Status: domain.InvoiceStatusPending})

	_, err := f.service.GenerateDocument(context.Background(), 1, DocumentRequest{Type: domain.DocumentInvoice})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	id := int32(5)
	_, err = f.service.GenerateDocument(context.Background(), 1, DocumentRequest{Type: domain.DocumentInvoice, InvoiceID: &id})
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-0005", f.renderer.Rendered[0].Invoice.InvoiceNumber)
}

func TestGenerateDocument_Failures(t *testing.T) {
	f := newDocumentFixture(true)

	_, err := f.service.GenerateDocument(context.Background(), 1, DocumentRequest{Type: "brochure"})
	assert.ErrorIs(t, err, domain.ErrDocumentTypeInvalid)

	_, err = f.service.GenerateDocument(context.Background(), 42, DocumentRequest{Type: domain.DocumentAgreement})
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)

	f.renderer.RenderFn = func(data *domain.DocumentData) ([]byte, error) {
		return nil, errors.New("font missing")
	}
	_, err = f.service.GenerateDocument(context.Background(), 1, DocumentRequest{Type: domain.DocumentAgreement})
	assert.ErrorContains(t, err, "font missing")
	assert.Empty(t, f.documentRepo.Documents)
	assert.Empty(t, f.store.Objects)
}

func TestStatementCSV(t *testing.T) {
	f := newDocumentFixture(false)
	ref := "TXN-1"
	f.paymentRepo.AddPayment(&domain.LoanPayment{
		ID:                  1,
		LoanID:              1,
		PaymentNumber:       1,
		Kind:                domain.PaymentKindInstallment,
		AmountPaid:          dec("700"),
		PrincipalPortion:    dec("200"),
		InterestPortion:     dec("500"),
		BalanceAfterPayment: dec("9300"),
		PaymentMethod:       "cash",
		PaymentDate:         time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC),
		ReferenceID:         &ref,
	})

	out, err := f.service.StatementCSV(context.Background(), 1)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(statementHeader, ","), lines[0])
	assert.Equal(t, "1,installment,2025-02-15,700.00,200.00,500.00,9300.00,cash,TXN-1", lines[1])
}
