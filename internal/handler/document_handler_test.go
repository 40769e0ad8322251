package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDocument_Agreement(t *testing.T) {
	e := echo.New()
	b := newBackOffice()
	b.addActiveLoan(1)
	handler := NewDocumentHandler(b.documents)

	c, rec := newContext(e, http.MethodPost, "/api/v1/loans/1/documents/agreement", "")
	withParams(c, "id", "1", "type", "agreement")

	err := handler.GenerateDocument(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	number := rec.Header().Get("X-Document-Number")
	assert.Regexp(t, `^DOC-\d{4}-0001$`, number)
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "agreement-"+number+".pdf")
	assert.Equal(t, "%PDF-agreement-"+number, rec.Body.String())

	require.Len(t, b.documentRepo.Documents, 1)
	assert.Equal(t, domain.DocumentAgreement, b.documentRepo.Documents[0].Type)
	assert.Nil(t, b.documentRepo.Documents[0].StorageKey)

	c, rec = newContext(e, http.MethodGet, "/api/v1/loans/1/documents", "")
	withParams(c, "id", "1")
	require.NoError(t, handler.GetDocuments(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var docs []domain.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, number, docs[0].DocumentNumber)
}

func TestGenerateDocument_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		docType string
		query   string
		status  int
	}{
		{"unknown type", "brochure", "", http.StatusBadRequest},
		{"noc on active loan", "noc", "", http.StatusConflict},
		{"certificate without settlement", "settlement-certificate", "", http.StatusConflict},
		{"receipt without payments", "receipt", "", http.StatusBadRequest},
		{"invoice without id", "invoice", "", http.StatusBadRequest},
		{"malformed invoice id", "invoice", "?invoiceId=x", http.StatusBadRequest},
		{"invoice of another loan", "invoice", "?invoiceId=1", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			b := newBackOffice()
			b.addActiveLoan(1)
			b.invoiceRepo.AddInvoice(&domain.Invoice{ID: 1, LoanID: 9, InvoiceNumber: "INV-2099-0001", Status: domain.InvoiceStatusPending})
			handler := NewDocumentHandler(b.documents)

			c, rec := newContext(e, http.MethodPost, "/api/v1/loans/1/documents/"+tt.docType+tt.query, "")
			withParams(c, "id", "1", "type", tt.docType)

			require.NoError(t, handler.GenerateDocument(c))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Empty(t, b.documentRepo.Documents)
		})
	}
}

func TestGenerateDocument_NOCForCompletedLoan(t *testing.T) {
	e := echo.New()
	b := newBackOffice()
	loan := b.addActiveLoan(1)
	loan.Status = domain.LoanStatusCompleted
	loan.RemainingBalance = dec("0")
	loan.PaymentsReceived = 2
	b.loanRepo.AddLoan(loan)
	handler := NewDocumentHandler(b.documents)

	c, rec := newContext(e, http.MethodPost, "/api/v1/loans/1/documents/noc", "")
	withParams(c, "id", "1", "type", "noc")

	require.NoError(t, handler.GenerateDocument(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-noc-"))
}

func TestGetReceipt(t *testing.T) {
	e := echo.New()
	b := newBackOffice()
	b.addActiveLoan(1)
	b.paymentRepo.AddPayment(&domain.LoanPayment{ID: 3, LoanID: 1, PaymentNumber: 1, AmountPaid: dec("576.19"), CreatedAt: time.Now()})
	handler := NewDocumentHandler(b.documents)

	c, rec := newContext(e, http.MethodGet, "/api/v1/loans/1/payments/3/receipt", "")
	withParams(c, "id", "1", "paymentId", "3")
	require.NoError(t, handler.GetReceipt(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, b.renderer.Rendered, 1)
	require.NotNil(t, b.renderer.Rendered[0].Payment)
	assert.Equal(t, int32(3), b.renderer.Rendered[0].Payment.ID)

	c, rec = newContext(e, http.MethodGet, "/api/v1/loans/1/payments/4/receipt", "")
	withParams(c, "id", "1", "paymentId", "4")
	require.NoError(t, handler.GetReceipt(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetStatementCSV(t *testing.T) {
	e := echo.New()
	b := newBackOffice()
	b.addActiveLoan(1)
	ref := "UPI-1"
	b.paymentRepo.AddPayment(&domain.LoanPayment{
		ID:                  1,
		LoanID:              1,
		PaymentNumber:       1,
		Kind:                domain.PaymentKindInstallment,
		AmountPaid:          dec("300"),
		PrincipalPortion:    dec("200"),
		InterestPortion:     dec("100"),
		BalanceAfterPayment: dec("852.38"),
		PaymentMethod:       "upi",
		PaymentDate:         mustDate("2099-02-01"),
		ReferenceID:         &ref,
	})
	handler := NewDocumentHandler(b.documents)

	c, rec := newContext(e, http.MethodGet, "/api/v1/loans/1/statement.csv", "")
	withParams(c, "id", "1")
	require.NoError(t, handler.GetStatementCSV(c))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "text/csv", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "statement-1.csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "payment_number,kind,payment_date"))
	assert.Equal(t, "1,installment,2099-02-01,300.00,200.00,100.00,852.38,upi,UPI-1", lines[1])

	c, rec = newContext(e, http.MethodGet, "/api/v1/loans/2/statement.csv", "")
	withParams(c, "id", "2")
	require.NoError(t, handler.GetStatementCSV(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
