package handler

import (
	"net/http"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/middleware"
	"github.com/dafibh/lendora/lendora-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// CustomerHandler handles customer-related HTTP requests
type CustomerHandler struct {
	customerService *service.CustomerService
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(customerService *service.CustomerService) *CustomerHandler {
	return &CustomerHandler{customerService: customerService}
}

// CustomerRequest represents the create/update customer request body
type CustomerRequest struct {
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	Email      *string `json:"email,omitempty"`
	Address    *string `json:"address,omitempty"`
	NationalID *string `json:"nationalId,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

func (req CustomerRequest) toInput() service.CustomerInput {
	return service.CustomerInput{
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		Address:    req.Address,
		NationalID: req.NationalID,
		Notes:      req.Notes,
	}
}

// CreateCustomer godoc
// @Summary Create a customer
// @Tags customers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CustomerRequest true "Customer"
// @Success 201 {object} domain.Customer
// @Failure 400 {object} ProblemDetails
// @Router /customers [post]
func (h *CustomerHandler) CreateCustomer(c echo.Context) error {
	var req CustomerRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	customer, err := h.customerService.CreateCustomer(c.Request().Context(), req.toInput())
	if err != nil {
		return handleServiceError(c, err, "create customer")
	}

	log.Info().Str("staff_id", middleware.GetStaffID(c)).Int32("customer_id", customer.ID).Msg("Customer created")

	return c.JSON(http.StatusCreated, customer)
}

// GetCustomers godoc
// @Summary List customers
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Param search query string false "Match on name or phone"
// @Success 200 {array} domain.Customer
// @Router /customers [get]
func (h *CustomerHandler) GetCustomers(c echo.Context) error {
	customers, err := h.customerService.ListCustomers(c.Request().Context(), c.QueryParam("search"))
	if err != nil {
		return handleServiceError(c, err, "list customers")
	}
	if customers == nil {
		customers = []*domain.Customer{}
	}
	return c.JSON(http.StatusOK, customers)
}

// GetCustomer godoc
// @Summary Get a customer
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Customer ID"
// @Success 200 {object} domain.Customer
// @Failure 404 {object} ProblemDetails
// @Router /customers/{id} [get]
func (h *CustomerHandler) GetCustomer(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewValidationError(c, "Invalid customer ID", nil)
	}

	customer, err := h.customerService.GetCustomer(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err, "get customer")
	}
	return c.JSON(http.StatusOK, customer)
}

// UpdateCustomer godoc
// @Summary Update a customer
// @Tags customers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Customer ID"
// @Param request body CustomerRequest true "Customer"
// @Success 200 {object} domain.Customer
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /customers/{id} [put]
func (h *CustomerHandler) UpdateCustomer(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewValidationError(c, "Invalid customer ID", nil)
	}

	var req CustomerRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	customer, err := h.customerService.UpdateCustomer(c.Request().Context(), id, req.toInput())
	if err != nil {
		return handleServiceError(c, err, "update customer")
	}

	log.Info().Str("staff_id", middleware.GetStaffID(c)).Int32("customer_id", id).Msg("Customer updated")

	return c.JSON(http.StatusOK, customer)
}

// GetCustomerLoans godoc
// @Summary List loans of a customer
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Customer ID"
// @Success 200 {array} LoanResponse
// @Failure 404 {object} ProblemDetails
// @Router /customers/{id}/loans [get]
func (h *CustomerHandler) GetCustomerLoans(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewValidationError(c, "Invalid customer ID", nil)
	}

	loans, err := h.customerService.GetCustomerLoans(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err, "get customer loans")
	}

	response := make([]LoanResponse, len(loans))
	for i, loan := range loans {
		response[i] = toLoanResponse(loan, false)
	}
	return c.JSON(http.StatusOK, response)
}
