package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/middleware"
	"github.com/dafibh/lendora/lendora-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// DocumentHandler handles document generation and export
type DocumentHandler struct {
	documentService *service.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documentService *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// GetDocuments godoc
// @Summary List generated documents of a loan
// @Tags documents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {array} domain.Document
// @Failure 404 {object} ProblemDetails
// @Router /loans/{id}/documents [get]
func (h *DocumentHandler) GetDocuments(c echo.Context) error {
	loanID, ok := parseIDParam(c, "id")
	if !ok {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	docs, err := h.documentService.ListDocuments(c.Request().Context(), loanID)
	if err != nil {
		return handleServiceError(c, err, "list documents")
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	return c.JSON(http.StatusOK, docs)
}

// GenerateDocument godoc
// @Summary Generate a loan document
// @Description Renders a PDF, records it under the next document number and returns the file
// @Tags documents
// @Produce application/pdf
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param type path string true "agreement, statement, receipt, noc, invoice or settlement-certificate"
// @Param paymentId query int false "Payment for a receipt (defaults to the latest)"
// @Param invoiceId query int false "Invoice for an invoice document"
// @Success 200 {file} binary
// @Failure 400 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /loans/{id}/documents/{type} [post]
func (h *DocumentHandler) GenerateDocument(c echo.Context) error {
	loanID, ok := parseIDParam(c, "id")
	if !ok {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	req := service.DocumentRequest{Type: domain.DocumentType(c.Param("type"))}
	paymentID, paymentErr := optionalQueryID(c, "paymentId")
	invoiceID, invoiceErr := optionalQueryID(c, "invoiceId")
	if verrs := collect(paymentErr, invoiceErr); len(verrs) > 0 {
		return NewValidationError(c, "Validation failed", verrs)
	}
	req.PaymentID = paymentID
	req.InvoiceID = invoiceID

	return h.generate(c, loanID, req)
}

// GetReceipt godoc
// @Summary Download the receipt of a payment
// @Tags documents
// @Produce application/pdf
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param paymentId path int true "Payment ID"
// @Success 200 {file} binary
// @Failure 404 {object} ProblemDetails
// @Router /loans/{id}/payments/{paymentId}/receipt [get]
func (h *DocumentHandler) GetReceipt(c echo.Context) error {
	loanID, paymentID, ok := parsePaymentParams(c)
	if !ok {
		return NewValidationError(c, "Invalid loan or payment ID", nil)
	}
	return h.generate(c, loanID, service.DocumentRequest{Type: domain.DocumentReceipt, PaymentID: &paymentID})
}

// GetStatementCSV godoc
// @Summary Export the payment history of a loan as CSV
// @Tags documents
// @Produce text/csv
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {file} binary
// @Failure 404 {object} ProblemDetails
// @Router /loans/{id}/statement.csv [get]
func (h *DocumentHandler) GetStatementCSV(c echo.Context) error {
	loanID, ok := parseIDParam(c, "id")
	if !ok {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	data, err := h.documentService.StatementCSV(c.Request().Context(), loanID)
	if err != nil {
		return handleServiceError(c, err, "export statement")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="statement-%d.csv"`, loanID))
	return c.Blob(http.StatusOK, "text/csv", data)
}

func (h *DocumentHandler) generate(c echo.Context, loanID int32, req service.DocumentRequest) error {
	doc, err := h.documentService.GenerateDocument(c.Request().Context(), loanID, req)
	if err != nil {
		return handleServiceError(c, err, "generate document")
	}

	log.Info().
		Str("staff_id", middleware.GetStaffID(c)).
		Int32("loan_id", loanID).
		Str("type", string(req.Type)).
		Str("document_number", doc.Document.DocumentNumber).
		Msg("Document generated")

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, doc.Filename))
	c.Response().Header().Set("X-Document-Number", doc.Document.DocumentNumber)
	return c.Blob(http.StatusOK, doc.ContentType, doc.Content)
}

func optionalQueryID(c echo.Context, name string) (*int32, *ValidationError) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return nil, &ValidationError{Field: name, Message: "Must be a positive integer"}
	}
	v := int32(id)
	return &v, nil
}
