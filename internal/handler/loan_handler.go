package handler

import (
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

// LoanHandler handles loan-related HTTP requests
type LoanHandler struct {
	loanService    *service.LoanService
	invoiceService *service.InvoiceService
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(loanService *service.LoanService, invoiceService *service.InvoiceService) *LoanHandler {
	return &LoanHandler{loanService: loanService, invoiceService: invoiceService}
}

// LoanTermsRequest represents the create/update loan request body
type LoanTermsRequest struct {
	CustomerID   int32   `json:"customerId"`
	Principal    string  `json:"principal"`
	MonthlyRate  string  `json:"monthlyInterestRate"`
	Tenure       int32   `json:"loanDurationMonths"`
	InterestType string  `json:"interestType"`
	StartDate    string  `json:"startDate"`
	MonthlyEMI   *string `json:"monthlyEmi,omitempty"` // Optional: manual EMI override
	Purpose      *string `json:"purpose,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// UpdateLoanStatusRequest represents the manual status change request body
type UpdateLoanStatusRequest struct {
	Status string `json:"status"`
}

// ForecloseLoanRequest represents the foreclosure request body
type ForecloseLoanRequest struct {
	SettlementAmount *string             `json:"settlementAmount,omitempty"`
	Discount         *string             `json:"discount,omitempty"`
	PaymentMethod    string              `json:"paymentMethod"`
	PaymentDate      *string             `json:"paymentDate,omitempty"`
	Notes            *string             `json:"notes,omitempty"`
	BankDetails      *domain.BankDetails `json:"bankDetails,omitempty"`
}

// ScheduleEntryResponse represents one installment of the amortization schedule
type ScheduleEntryResponse struct {
	Month     int32  `json:"month"`
	EMI       string `json:"emi"`
	Principal string `json:"principal"`
	Interest  string `json:"interest"`
	Balance   string `json:"balance"`
	DueDate   string `json:"dueDate"`
}

// SettlementResponse represents the foreclosure details of a closed loan
type SettlementResponse struct {
	Balance       string              `json:"balance"`
	Amount        string              `json:"amount"`
	Discount      string              `json:"discount"`
	PaymentMethod string              `json:"paymentMethod"`
	Notes         *string             `json:"notes,omitempty"`
	Date          string              `json:"date"`
	BankDetails   *domain.BankDetails `json:"bankDetails,omitempty"`
}

// LoanResponse represents a loan in API responses
type LoanResponse struct {
	ID                  int32                   `json:"id"`
	LoanNumber          string                  `json:"loanNumber"`
	CustomerID          int32                   `json:"customerId"`
	Principal           string                  `json:"principal"`
	MonthlyInterestRate string                  `json:"monthlyInterestRate"`
	DurationMonths      int32                   `json:"loanDurationMonths"`
	InterestType        string                  `json:"interestType"`
	StartDate           string                  `json:"startDate"`
	EndDate             string                  `json:"endDate"`
	MonthlyEMI          string                  `json:"monthlyEmi"`
	EMIOverride         bool                    `json:"emiOverride"`
	TotalAmountPayable  string                  `json:"totalAmountPayable"`
	TotalInterestAmount string                  `json:"totalInterestAmount"`
	RemainingBalance    string                  `json:"remainingBalance"`
	PaymentsReceived    int32                   `json:"paymentsReceived"`
	Status              string                  `json:"status"`
	ApprovalDate        *string                 `json:"approvalDate,omitempty"`
	Purpose             *string                 `json:"purpose,omitempty"`
	Notes               *string                 `json:"notes,omitempty"`
	Settlement          *SettlementResponse     `json:"settlement,omitempty"`
	Schedule            []ScheduleEntryResponse `json:"amortizationSchedule,omitempty"`
	CreatedAt           string                  `json:"createdAt"`
	UpdatedAt           string                  `json:"updatedAt"`
}

// ForeclosureResponse represents the result of a foreclosure
type ForeclosureResponse struct {
	Loan    LoanResponse        `json:"loan"`
	Payment LoanPaymentResponse `json:"payment"`
}

func (req LoanTermsRequest) toInput() (service.LoanTermsInput, []ValidationError) {
	principal, principalErr := parseAmount("principal", req.Principal)
	rate, rateErr := parseAmount("monthlyInterestRate", req.MonthlyRate)
	startDate, dateErr := parseDate("startDate", req.StartDate)
	emi, emiErr := parseOptionalAmount("monthlyEmi", req.MonthlyEMI)
	if errs := collect(principalErr, rateErr, dateErr, emiErr); len(errs) > 0 {
		return service.LoanTermsInput{}, errs
	}
	return service.LoanTermsInput{
		CustomerID:   req.CustomerID,
		Principal:    principal,
		MonthlyRate:  rate,
		Tenure:       req.Tenure,
		InterestType: domain.InterestType(req.InterestType),
		StartDate:    startDate,
		EMIOverride:  emi,
		Purpose:      req.Purpose,
		Notes:        req.Notes,
	}, nil
}

// CreateLoan godoc
// @Summary Create a loan
// @Description Compute the amortization schedule and create a loan pending approval
// @Tags loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body LoanTermsRequest true "Loan terms"
// @Success 201 {object} LoanResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /loans [post]
func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req LoanTermsRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	input, verrs := req.toInput()
	if len(verrs) > 0 {
		return NewValidationError(c, "Validation failed", verrs)
	}

	loan, err := h.loanService.CreateLoan(c.Request().Context(), input)
	if err != nil {
		return handleServiceError(c, err, "create loan")
	}

	log.Info().Str("staff_id", middleware.GetStaffID(c)).Int32("loan_id", loan.ID).Str("loan_number", loan.LoanNumber).Msg("Loan created")

	return c.JSON(http.StatusCreated, toLoanResponse(loan, true))
}

// GetLoans godoc
// @Summary List loans
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param customerId query int false "Filter by customer"
// @Success 200 {array} LoanResponse
// @Failure 400 {object} ProblemDetails
// @Router /loans [get]
func (h *LoanHandler) GetLoans(c echo.Context) error {
	filter := domain.LoanFilter{Status: domain.LoanStatus(c.QueryParam("status"))}
	if filter.Status != "" && !filter.Status.IsValid() {
		return NewValidationError(c, "Invalid status filter", []ValidationError{
			{Field: "status", Message: "Unknown loan status"},
		})
	}
	if raw := c.QueryParam("customerId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return NewValidationError(c, "Invalid customer ID", nil)
		}
		filter.CustomerID = int32(id)
	}

	loans, err := h.loanService.ListLoans(c.Request().Context(), filter)
	if err != nil {
		return handleServiceError(c, err, "list loans")
	}

	response := make([]LoanResponse, len(loans))
	for i, loan := range loans {
		response[i] = toLoanResponse(loan, false)
	}
	return c.JSON(http.StatusOK, response)
}

// GetLoan godoc
// @Summary Get a loan with its amortization schedule
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} LoanResponse
// @Failure 404 {object} ProblemDetails
// @Router /loans/{id} [get]
func (h *LoanHandler) GetLoan(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	loan, err := h.loanService.GetLoan(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err, "get loan")
	}
	return c.JSON(http.StatusOK, toLoanResponse(loan, true))
}

// UpdateLoan godoc
// @Summary Update loan terms
// @Description Terms can only change while the loan is pending approval
// @Tags loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param request body LoanTermsRequest true "Loan terms"
// @Success 200 {object} LoanResponse
// @Failure 400 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /loans/{id} [put]
func (h *LoanHandler) UpdateLoan(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	var req LoanTermsRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	input, verrs := req.toInput()
	if len(verrs) > 0 {
		return NewValidationError(c, "Validation failed", verrs)
	}

	loan, err := h.loanService.UpdateLoan(c.Request().Context(), id, input)
	if err != nil {
		return handleServiceError(c, err, "update loan")
	}

	log.Info().Str("staff_id", middleware.GetStaffID(c)).Int32("loan_id", id).Msg("Loan updated")

	return c.JSON(http.StatusOK, toLoanResponse(loan, true))
}

// ApproveLoan godoc
// @Summary Approve a pending loan
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} LoanResponse
// @Failure 409 {object} ProblemDetails
// @Router /loans/{id}/approve [post]
func (h *LoanHandler) ApproveLoan(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	loan, err := h.loanService.ApproveLoan(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err, "approve loan")
	}

	log.Info().Str("staff_id", middleware.GetStaffID(c)).Int32("loan_id", id).Msg("Loan approved")

	return c.JSON(http.StatusOK, toLoanResponse(loan, false))
}

// CancelLoan godoc
// @Summary Cancel a pending loan
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} LoanResponse
// @Failure 409 {object} ProblemDetails
// @Router /loans/{id}/cancel [post]
func (h *LoanHandler) CancelLoan(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	loan, err := h.loanService.CancelLoan(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err, "cancel loan")
	}

	log.Info().Str("staff_id", middleware.GetStaffID(c)).Int32("loan_id", id).Msg("Loan cancelled")

	return c.JSON(http.StatusOK, toLoanResponse(loan, false))
}

// UpdateLoanStatus godoc
// @Summary Manually override the loan status
// @Tags loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param request body UpdateLoanStatusRequest true "Target status"
// @Success 200 {object} LoanResponse
// @Failure 400 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /loans/{id}/status [patch]
func (h *LoanHandler) UpdateLoanStatus(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	var req UpdateLoanStatusRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	loan, err := h.loanService.UpdateLoanStatus(c.Request().Context(), id, domain.LoanStatus(req.Status))
	if err != nil {
		return handleServiceError(c, err, "update loan status")
	}

	log.Info().Str("staff_id", middleware.GetStaffID(c)).Int32("loan_id", id).Str("status", req.Status).Msg("Loan status changed")

	return c.JSON(http.StatusOK, toLoanResponse(loan, false))
}

// ForecloseLoan godoc
// @Summary Settle and close a loan early
// @Tags loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param request body ForecloseLoanRequest true "Settlement terms"
// @Success 200 {object} ForeclosureResponse
// @Failure 400 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /loans/{id}/foreclose [post]
func (h *LoanHandler) ForecloseLoan(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	var req ForecloseLoanRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	amount, amountErr := parseOptionalAmount("settlementAmount", req.SettlementAmount)
	discount, discountErr := parseOptionalAmount("discount", req.Discount)
	date, dateErr := parseOptionalDate("paymentDate", req.PaymentDate)
	if verrs := collect(amountErr, discountErr, dateErr); len(verrs) > 0 {
		return NewValidationError(c, "Validation failed", verrs)
	}

	input := service.ForecloseInput{
		SettlementAmount: amount,
		PaymentMethod:    req.PaymentMethod,
		Notes:            req.Notes,
		Date:             date,
		BankDetails:      req.BankDetails,
	}
	if discount != nil {
		input.Discount = *discount
	}

	result, err := h.loanService.ForecloseLoan(c.Request().Context(), id, input)
	if err != nil {
		return handleServiceError(c, err, "foreclose loan")
	}

	log.Info().
		Str("staff_id", middleware.GetStaffID(c)).
		Int32("loan_id", id).
		Str("amount", result.Payment.AmountPaid.StringFixed(2)).
		Msg("Loan foreclosed")

	return c.JSON(http.StatusOK, ForeclosureResponse{
		Loan:    toLoanResponse(result.Loan, false),
		Payment: toLoanPaymentResponse(result.Payment),
	})
}

// GetLoanInvoices godoc
// @Summary List invoices of a loan
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {array} InvoiceResponse
// @Failure 404 {object} ProblemDetails
// @Router /loans/{id}/invoices [get]
func (h *LoanHandler) GetLoanInvoices(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	ctx := c.Request().Context()
	if _, err := h.loanService.GetLoan(ctx, id); err != nil {
		return handleServiceError(c, err, "get loan")
	}
	invoices, err := h.invoiceService.ListInvoices(ctx, domain.InvoiceFilter{LoanID: id})
	if err != nil {
		return handleServiceError(c, err, "list invoices")
	}
	return c.JSON(http.StatusOK, toInvoiceResponses(invoices))
}

func toLoanResponse(loan *domain.Loan, withSchedule bool) LoanResponse {
	resp := LoanResponse{
		ID:                  loan.ID,
		LoanNumber:          loan.LoanNumber,
		CustomerID:          loan.CustomerID,
		Principal:           loan.Principal.StringFixed(2),
		MonthlyInterestRate: loan.MonthlyInterestRate.String(),
		DurationMonths:      loan.DurationMonths,
		InterestType:        string(loan.InterestType),
		StartDate:           util.FormatDate(loan.StartDate),
		EndDate:             util.FormatDate(loan.EndDate),
		MonthlyEMI:          loan.MonthlyEMI.StringFixed(2),
		EMIOverride:         loan.EMIOverride,
		TotalAmountPayable:  loan.TotalAmountPayable.StringFixed(2),
		TotalInterestAmount: loan.TotalInterestAmount.StringFixed(2),
		RemainingBalance:    loan.RemainingBalance.StringFixed(2),
		PaymentsReceived:    loan.PaymentsReceived,
		Status:              string(loan.Status),
		ApprovalDate:        formatTimePtr(loan.ApprovalDate),
		Purpose:             loan.Purpose,
		Notes:               loan.Notes,
		CreatedAt:           loan.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           loan.UpdatedAt.Format(time.RFC3339),
	}
	if s := loan.Settlement; s != nil {
		resp.Settlement = &SettlementResponse{
			Balance:       s.Balance.StringFixed(2),
			Amount:        s.Amount.StringFixed(2),
			Discount:      s.Discount.StringFixed(2),
			PaymentMethod: s.PaymentMethod,
			Notes:         s.Notes,
			Date:          util.FormatDate(s.Date),
			BankDetails:   s.BankDetails,
		}
	}
	if withSchedule {
		resp.Schedule = toScheduleResponse(loan.Schedule)
	}
	return resp
}

func toScheduleResponse(schedule []domain.ScheduleEntry) []ScheduleEntryResponse {
	out := make([]ScheduleEntryResponse, len(schedule))
	for i, e := range schedule {
		out[i] = ScheduleEntryResponse{
			Month:     e.Month,
			EMI:       e.EMI.StringFixed(2),
			Principal: e.Principal.StringFixed(2),
			Interest:  e.Interest.StringFixed(2),
			Balance:   e.Balance.StringFixed(2),
			DueDate:   util.FormatDate(e.DueDate),
		}
	}
	return out
}
