package document

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData(t domain.DocumentType) *domain.DocumentData {
	address := "12 Market Road"
	ref := "UPI-778"
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	payment := &domain.LoanPayment{
		ID:                  1,
		PaymentNumber:       1,
		Kind:                domain.PaymentKindInstallment,
		AmountPaid:          decimal.RequireFromString("16143.68"),
		PrincipalPortion:    decimal.RequireFromString("4143.68"),
		InterestPortion:     decimal.RequireFromString("12000.00"),
		BalanceAfterPayment: decimal.RequireFromString("177580.48"),
		PaymentMethod:       "bank_transfer",
		PaymentDate:         start.AddDate(0, 1, 0),
		ReferenceID:         &ref,
		BankDetails:         &domain.BankDetails{BankName: "First Bank", TransactionID: "TX-1"},
	}

	return &domain.DocumentData{
		Type:           t,
		DocumentNumber: "DOC-2025-0001",
		GeneratedAt:    time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		Lender:         &domain.Lender{BusinessName: "Rao Finance", Address: &address},
		Customer:       &domain.Customer{Name: "Asha Rao", Phone: "555-0101", Address: &address},
		Loan: &domain.Loan{
			LoanNumber:          "LN-2025-0001",
			Principal:           decimal.NewFromInt(100000),
			MonthlyInterestRate: decimal.NewFromInt(12),
			DurationMonths:      2,
			InterestType:        domain.InterestTypeSimple,
			StartDate:           start,
			EndDate:             start.AddDate(0, 2, 0),
			MonthlyEMI:          decimal.RequireFromString("16143.68"),
			RemainingBalance:    decimal.RequireFromString("177580.48"),
			Status:              domain.LoanStatusClosed,
			Schedule: []domain.ScheduleEntry{
				{Month: 1, EMI: decimal.RequireFromString("16143.68"), DueDate: start.AddDate(0, 1, 0)},
				{Month: 2, EMI: decimal.RequireFromString("16143.68"), DueDate: start.AddDate(0, 2, 0)},
			},
			Settlement: &domain.Settlement{
				Balance:       decimal.RequireFromString("177580.48"),
				Amount:        decimal.NewFromInt(150000),
				Discount:      decimal.RequireFromString("27580.48"),
				PaymentMethod: "cash",
				Date:          start.AddDate(0, 2, 0),
			},
		},
		Payments: []*domain.LoanPayment{payment},
		Payment:  payment,
		Invoice: &domain.Invoice{
			InvoiceNumber: "INV-2025-0001",
			PeriodMonth:   2,
			PeriodYear:    2025,
			AmountDue:     decimal.RequireFromString("16143.68"),
			BalanceDue:    decimal.RequireFromString("16143.68"),
			DueDate:       start.AddDate(0, 1, 0),
			Status:        domain.InvoiceStatusIssued,
		},
	}
}

func TestPDFRenderer_AllTypes(t *testing.T) {
	renderer := NewPDFRenderer()
	assert.Equal(t, "application/pdf", renderer.ContentType())

	types := []domain.DocumentType{
		domain.DocumentAgreement,
		domain.DocumentStatement,
		domain.DocumentReceipt,
		domain.DocumentNOC,
		domain.DocumentInvoice,
		domain.DocumentSettlementCertificate,
	}
	for _, docType := range types {
		t.Run(string(docType), func(t *testing.T) {
			out, err := renderer.Render(sampleData(docType))
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
			assert.Contains(t, string(bytes.TrimSpace(out[len(out)-16:])), "%%EOF")
		})
	}
}

func TestPDFRenderer_StatementWithoutPayments(t *testing.T) {
	data := sampleData(domain.DocumentStatement)
	data.Payments = nil

	out, err := NewPDFRenderer().Render(data)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestPDFRenderer_IncompleteData(t *testing.T) {
	renderer := NewPDFRenderer()

	receipt := sampleData(domain.DocumentReceipt)
	receipt.Payment = nil
	invoice := sampleData(domain.DocumentInvoice)
	invoice.Invoice = nil
	certificate := sampleData(domain.DocumentSettlementCertificate)
	certificate.Loan.Settlement = nil
	noLender := sampleData(domain.DocumentAgreement)
	noLender.Lender = nil

	for name, data := range map[string]*domain.DocumentData{
		"nil":                    nil,
		"receipt":                receipt,
		"invoice":                invoice,
		"settlement certificate": certificate,
		"no lender":              noLender,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := renderer.Render(data)
			assert.True(t, errors.Is(err, ErrIncompleteData), "got %v", err)
		})
	}
}

func TestPDFRenderer_UnknownType(t *testing.T) {
	_, err := NewPDFRenderer().Render(sampleData("brochure"))
	assert.ErrorIs(t, err, domain.ErrDocumentTypeInvalid)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "No Objection Certificate", Title(domain.DocumentNOC))
	assert.Equal(t, "Document", Title("unknown"))
}
