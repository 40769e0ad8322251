package handler

import (
	"net/http"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/middleware"
	"github.com/dafibh/lendora/lendora-backend/internal/service"
	"github.com/dafibh/lendora/lendora-backend/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// LoanPaymentHandler handles loan payment-related HTTP requests
type LoanPaymentHandler struct {
	paymentService *service.LoanPaymentService
}

// NewLoanPaymentHandler creates a new LoanPaymentHandler
func NewLoanPaymentHandler(paymentService *service.LoanPaymentService) *LoanPaymentHandler {
	return &LoanPaymentHandler{paymentService: paymentService}
}

// RecordPaymentRequest represents the record payment request body
type RecordPaymentRequest struct {
	Amount        string              `json:"amount"`
	PaymentMethod string              `json:"paymentMethod"`
	PaymentDate   string              `json:"paymentDate"`
	ReferenceID   *string             `json:"referenceId,omitempty"`
	Notes         *string             `json:"notes,omitempty"`
	BankDetails   *domain.BankDetails `json:"bankDetails,omitempty"`
}

// UpdatePaymentRequest represents the update payment request body.
// Amount is accepted only to reject it with a clear error.
type UpdatePaymentRequest struct {
	Amount        *string             `json:"amount,omitempty"`
	PaymentMethod *string             `json:"paymentMethod,omitempty"`
	PaymentDate   *string             `json:"paymentDate,omitempty"`
	ReferenceID   *string             `json:"referenceId,omitempty"`
	Notes         *string             `json:"notes,omitempty"`
	BankDetails   *domain.BankDetails `json:"bankDetails,omitempty"`
}

// LoanPaymentResponse represents a loan payment in API responses
type LoanPaymentResponse struct {
	ID                  int32               `json:"id"`
	LoanID              int32               `json:"loanId"`
	CustomerID          int32               `json:"customerId"`
	PaymentNumber       int32               `json:"paymentNumber"`
	Kind                string              `json:"kind"`
	AmountPaid          string              `json:"amountPaid"`
	PrincipalPortion    string              `json:"principalPortion"`
	InterestPortion     string              `json:"interestPortion"`
	BalanceAfterPayment string              `json:"balanceAfterPayment"`
	PaymentMethod       string              `json:"paymentMethod"`
	PaymentDate         string              `json:"paymentDate"`
	ReferenceID         *string             `json:"referenceId,omitempty"`
	Notes               *string             `json:"notes,omitempty"`
	BankDetails         *domain.BankDetails `json:"bankDetails,omitempty"`
	CreatedAt           string              `json:"createdAt"`
	UpdatedAt           string              `json:"updatedAt"`
}

// PaymentResultResponse represents a recorded payment with the updated loan
type PaymentResultResponse struct {
	Payment LoanPaymentResponse `json:"payment"`
	Loan    LoanResponse        `json:"loan"`
}

// RecordPayment godoc
// @Summary Record a payment against a loan
// @Description Splits the amount interest-first against the next installment and updates the balance
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param request body RecordPaymentRequest true "Payment"
// @Success 201 {object} PaymentResultResponse
// @Failure 400 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /loans/{id}/payments [post]
func (h *LoanPaymentHandler) RecordPayment(c echo.Context) error {
	loanID, ok := parseIDParam(c, "id")
	if !ok {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	var req RecordPaymentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	amount, amountErr := parseAmount("amount", req.Amount)
	date, dateErr := parseDate("paymentDate", req.PaymentDate)
	if verrs := collect(amountErr, dateErr); len(verrs) > 0 {
		return NewValidationError(c, "Validation failed", verrs)
	}

	result, err := h.paymentService.RecordPayment(c.Request().Context(), loanID, service.RecordPaymentInput{
		Amount:        amount,
		PaymentMethod: req.PaymentMethod,
		PaymentDate:   date,
		ReferenceID:   req.ReferenceID,
		Notes:         req.Notes,
		BankDetails:   req.BankDetails,
	})
	if err != nil {
		return handleServiceError(c, err, "record payment")
	}

	log.Info().
		Str("staff_id", middleware.GetStaffID(c)).
		Int32("loan_id", loanID).
		Int32("payment_id", result.Payment.ID).
		Str("amount", result.Payment.AmountPaid.StringFixed(2)).
		Msg("Payment recorded")

	return c.JSON(http.StatusCreated, PaymentResultResponse{
		Payment: toLoanPaymentResponse(result.Payment),
		Loan:    toLoanResponse(result.Loan, false),
	})
}

// GetPaymentsByLoanID godoc
// @Summary List payments of a loan
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {array} LoanPaymentResponse
// @Failure 404 {object} ProblemDetails
// @Router /loans/{id}/payments [get]
func (h *LoanPaymentHandler) GetPaymentsByLoanID(c echo.Context) error {
	loanID, ok := parseIDParam(c, "id")
	if !ok {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	payments, err := h.paymentService.GetPaymentsByLoanID(c.Request().Context(), loanID)
	if err != nil {
		return handleServiceError(c, err, "get loan payments")
	}

	response := make([]LoanPaymentResponse, len(payments))
	for i, payment := range payments {
		response[i] = toLoanPaymentResponse(payment)
	}
	return c.JSON(http.StatusOK, response)
}

// GetPayment godoc
// @Summary Get a payment
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param paymentId path int true "Payment ID"
// @Success 200 {object} LoanPaymentResponse
// @Failure 404 {object} ProblemDetails
// @Router /loans/{id}/payments/{paymentId} [get]
func (h *LoanPaymentHandler) GetPayment(c echo.Context) error {
	loanID, paymentID, ok := parsePaymentParams(c)
	if !ok {
		return NewValidationError(c, "Invalid loan or payment ID", nil)
	}

	payment, err := h.paymentService.GetPayment(c.Request().Context(), loanID, paymentID)
	if err != nil {
		return handleServiceError(c, err, "get payment")
	}
	return c.JSON(http.StatusOK, toLoanPaymentResponse(payment))
}

// UpdatePayment godoc
// @Summary Edit payment details within the edit window
// @Description Method, date, reference, notes and bank details may change; the amount may not
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param paymentId path int true "Payment ID"
// @Param request body UpdatePaymentRequest true "Changes"
// @Success 200 {object} LoanPaymentResponse
// @Failure 403 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /loans/{id}/payments/{paymentId} [put]
func (h *LoanPaymentHandler) UpdatePayment(c echo.Context) error {
	loanID, paymentID, ok := parsePaymentParams(c)
	if !ok {
		return NewValidationError(c, "Invalid loan or payment ID", nil)
	}

	var req UpdatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	amount, amountErr := parseOptionalAmount("amount", req.Amount)
	date, dateErr := parseOptionalDate("paymentDate", req.PaymentDate)
	if verrs := collect(amountErr, dateErr); len(verrs) > 0 {
		return NewValidationError(c, "Validation failed", verrs)
	}

	payment, err := h.paymentService.UpdatePayment(c.Request().Context(), loanID, paymentID, service.UpdatePaymentInput{
		Amount:        amount,
		PaymentMethod: req.PaymentMethod,
		PaymentDate:   date,
		ReferenceID:   req.ReferenceID,
		Notes:         req.Notes,
		BankDetails:   req.BankDetails,
	})
	if err != nil {
		return handleServiceError(c, err, "update payment")
	}

	log.Info().Str("staff_id", middleware.GetStaffID(c)).Int32("loan_id", loanID).Int32("payment_id", paymentID).Msg("Payment updated")

	return c.JSON(http.StatusOK, toLoanPaymentResponse(payment))
}

// ReversePayment godoc
// @Summary Reverse a payment within the edit window
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param paymentId path int true "Payment ID"
// @Success 200 {object} LoanResponse
// @Failure 403 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /loans/{id}/payments/{paymentId} [delete]
func (h *LoanPaymentHandler) ReversePayment(c echo.Context) error {
	loanID, paymentID, ok := parsePaymentParams(c)
	if !ok {
		return NewValidationError(c, "Invalid loan or payment ID", nil)
	}

	loan, err := h.paymentService.ReversePayment(c.Request().Context(), loanID, paymentID)
	if err != nil {
		return handleServiceError(c, err, "reverse payment")
	}

	log.Info().Str("staff_id", middleware.GetStaffID(c)).Int32("loan_id", loanID).Int32("payment_id", paymentID).Msg("Payment reversed")

	return c.JSON(http.StatusOK, toLoanResponse(loan, false))
}

func parsePaymentParams(c echo.Context) (loanID, paymentID int32, ok bool) {
	loanID, ok = parseIDParam(c, "id")
	if !ok {
		return 0, 0, false
	}
	paymentID, ok = parseIDParam(c, "paymentId")
	return loanID, paymentID, ok
}

func toLoanPaymentResponse(payment *domain.LoanPayment) LoanPaymentResponse {
	return LoanPaymentResponse{
		ID:                  payment.ID,
		LoanID:              payment.LoanID,
		CustomerID:          payment.CustomerID,
		PaymentNumber:       payment.PaymentNumber,
		Kind:                string(payment.Kind),
		AmountPaid:          payment.AmountPaid.StringFixed(2),
		PrincipalPortion:    payment.PrincipalPortion.StringFixed(2),
		InterestPortion:     payment.InterestPortion.StringFixed(2),
		BalanceAfterPayment: payment.BalanceAfterPayment.StringFixed(2),
		PaymentMethod:       payment.PaymentMethod,
		PaymentDate:         util.FormatDate(payment.PaymentDate),
		ReferenceID:         payment.ReferenceID,
		Notes:               payment.Notes,
		BankDetails:         payment.BankDetails,
		CreatedAt:           payment.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           payment.UpdatedAt.Format(time.RFC3339),
	}
}
