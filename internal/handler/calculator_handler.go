package handler

import (
	"net/http"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/service"
	"github.com/dafibh/lendora/lendora-backend/internal/util"
	"github.com/labstack/echo/v4"
)

// CalculatorHandler serves the public loan estimate
type CalculatorHandler struct{}

// NewCalculatorHandler creates a new CalculatorHandler
func NewCalculatorHandler() *CalculatorHandler {
	return &CalculatorHandler{}
}

// EstimateRequest represents the estimate request body
type EstimateRequest struct {
	Principal    string  `json:"principal"`
	MonthlyRate  string  `json:"monthlyInterestRate"`
	Tenure       int32   `json:"loanDurationMonths"`
	InterestType string  `json:"interestType"`
	StartDate    string  `json:"startDate"`
	MonthlyEMI   *string `json:"monthlyEmi,omitempty"`
}

// EstimateResponse represents a computed loan estimate
type EstimateResponse struct {
	MonthlyEMI          string                  `json:"monthlyEmi"`
	TotalAmountPayable  string                  `json:"totalAmountPayable"`
	TotalInterestAmount string                  `json:"totalInterestAmount"`
	StartDate           string                  `json:"startDate"`
	EndDate             string                  `json:"endDate"`
	Schedule            []ScheduleEntryResponse `json:"amortizationSchedule"`
}

// Estimate godoc
// @Summary Estimate a loan
// @Description Computes EMI, totals and the amortization schedule without storing anything
// @Tags calculator
// @Accept json
// @Produce json
// @Param request body EstimateRequest true "Loan terms"
// @Success 200 {object} EstimateResponse
// @Failure 400 {object} ProblemDetails
// @Router /calculator/estimate [post]
func (h *CalculatorHandler) Estimate(c echo.Context) error {
	var req EstimateRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	principal, principalErr := parseAmount("principal", req.Principal)
	rate, rateErr := parseAmount("monthlyInterestRate", req.MonthlyRate)
	startDate, dateErr := parseDate("startDate", req.StartDate)
	emi, emiErr := parseOptionalAmount("monthlyEmi", req.MonthlyEMI)
	if verrs := collect(principalErr, rateErr, dateErr, emiErr); len(verrs) > 0 {
		return NewValidationError(c, "Validation failed", verrs)
	}

	interestType := domain.InterestType(req.InterestType)
	if interestType == "" {
		interestType = domain.InterestTypeSimple
	}

	estimate, err := service.CalculateLoanEstimate(service.EstimateInput{
		Principal:    principal,
		MonthlyRate:  rate,
		Tenure:       req.Tenure,
		InterestType: interestType,
		StartDate:    startDate,
		EMIOverride:  emi,
	})
	if err != nil {
		return handleServiceError(c, err, "calculate estimate")
	}

	return c.JSON(http.StatusOK, EstimateResponse{
		MonthlyEMI:          estimate.MonthlyEMI.StringFixed(2),
		TotalAmountPayable:  estimate.TotalAmountPayable.StringFixed(2),
		TotalInterestAmount: estimate.TotalInterestAmount.StringFixed(2),
		StartDate:           util.FormatDate(estimate.StartDate),
		EndDate:             util.FormatDate(estimate.EndDate),
		Schedule:            toScheduleResponse(estimate.Schedule),
	})
}
