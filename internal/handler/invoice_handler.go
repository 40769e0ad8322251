package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/middleware"
	"github.com/dafibh/lendora/lendora-backend/internal/service"
	"github.com/dafibh/lendora/lendora-backend/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// InvoiceHandler handles invoice-related HTTP requests
type InvoiceHandler struct {
	invoiceService *service.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID            int32  `json:"id"`
	InvoiceNumber string `json:"invoiceNumber"`
	LoanID        int32  `json:"loanId"`
	CustomerID    int32  `json:"customerId"`
	PeriodMonth   int32  `json:"periodMonth"`
	PeriodYear    int32  `json:"periodYear"`
	AmountDue     string `json:"amountDue"`
	AmountPaid    string `json:"amountPaid"`
	BalanceDue    string `json:"balanceDue"`
	DueDate       string `json:"dueDate"`
	Status        string `json:"status"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

// GetInvoices godoc
// @Summary List invoices
// @Tags invoices
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param loanId query int false "Filter by loan"
// @Success 200 {array} InvoiceResponse
// @Router /invoices [get]
func (h *InvoiceHandler) GetInvoices(c echo.Context) error {
	filter := domain.InvoiceFilter{Status: domain.InvoiceStatus(c.QueryParam("status"))}
	if raw := c.QueryParam("loanId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return NewValidationError(c, "Invalid loan ID", nil)
		}
		filter.LoanID = int32(id)
	}

	invoices, err := h.invoiceService.ListInvoices(c.Request().Context(), filter)
	if err != nil {
		return handleServiceError(c, err, "list invoices")
	}
	return c.JSON(http.StatusOK, toInvoiceResponses(invoices))
}

// GetInvoice godoc
// @Summary Get an invoice
// @Tags invoices
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Success 200 {object} InvoiceResponse
// @Failure 404 {object} ProblemDetails
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewValidationError(c, "Invalid invoice ID", nil)
	}

	invoice, err := h.invoiceService.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err, "get invoice")
	}
	return c.JSON(http.StatusOK, toInvoiceResponse(invoice))
}

// RunInvoiceGeneration godoc
// @Summary Run the monthly invoice cycle now
// @Description Generates missing invoices for active loans and flags overdue ones; safe to repeat
// @Tags invoices
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.InvoiceRunResult
// @Router /invoices/run [post]
func (h *InvoiceHandler) RunInvoiceGeneration(c echo.Context) error {
	result, err := h.invoiceService.RunInvoiceGeneration(c.Request().Context())
	if err != nil {
		return handleServiceError(c, err, "run invoice generation")
	}

	log.Info().
		Str("staff_id", middleware.GetStaffID(c)).
		Int("generated", result.Generated).
		Int("skipped", result.Skipped).
		Int64("overdue", result.Overdue).
		Int("failed", len(result.Errors)).
		Msg("Invoice generation run")

	return c.JSON(http.StatusOK, result)
}

// IssueInvoice godoc
// @Summary Mark an invoice as issued
// @Tags invoices
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Success 200 {object} InvoiceResponse
// @Failure 409 {object} ProblemDetails
// @Router /invoices/{id}/issue [post]
func (h *InvoiceHandler) IssueInvoice(c echo.Context) error {
	return h.transition(c, "issue invoice", h.invoiceService.IssueInvoice)
}

// MarkInvoicePaid godoc
// @Summary Mark an invoice as paid
// @Tags invoices
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Success 200 {object} InvoiceResponse
// @Failure 409 {object} ProblemDetails
// @Router /invoices/{id}/pay [post]
func (h *InvoiceHandler) MarkInvoicePaid(c echo.Context) error {
	return h.transition(c, "mark invoice paid", h.invoiceService.MarkInvoicePaid)
}

// CancelInvoice godoc
// @Summary Cancel an invoice
// @Tags invoices
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Success 200 {object} InvoiceResponse
// @Failure 409 {object} ProblemDetails
// @Router /invoices/{id}/cancel [post]
func (h *InvoiceHandler) CancelInvoice(c echo.Context) error {
	return h.transition(c, "cancel invoice", h.invoiceService.CancelInvoice)
}

func (h *InvoiceHandler) transition(c echo.Context, action string, fn func(ctx context.Context, id int32) (*domain.Invoice, error)) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewValidationError(c, "Invalid invoice ID", nil)
	}

	invoice, err := fn(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err, action)
	}

	log.Info().Str("staff_id", middleware.GetStaffID(c)).Int32("invoice_id", id).Str("status", string(invoice.Status)).Msg("Invoice status changed")

	return c.JSON(http.StatusOK, toInvoiceResponse(invoice))
}

func toInvoiceResponse(invoice *domain.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:            invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		LoanID:        invoice.LoanID,
		CustomerID:    invoice.CustomerID,
		PeriodMonth:   invoice.PeriodMonth,
		PeriodYear:    invoice.PeriodYear,
		AmountDue:     invoice.AmountDue.StringFixed(2),
		AmountPaid:    invoice.AmountPaid.StringFixed(2),
		BalanceDue:    invoice.BalanceDue.StringFixed(2),
		DueDate:       util.FormatDate(invoice.DueDate),
		Status:        string(invoice.Status),
		CreatedAt:     invoice.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     invoice.UpdatedAt.Format(time.RFC3339),
	}
}

func toInvoiceResponses(invoices []*domain.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, len(invoices))
	for i, invoice := range invoices {
		out[i] = toInvoiceResponse(invoice)
	}
	return out
}
