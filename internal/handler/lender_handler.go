package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/dafibh/lendora/lendora-backend/internal/middleware"
	"github.com/dafibh/lendora/lendora-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// LenderHandler handles the lender profile endpoints
type LenderHandler struct {
	lenderService *service.LenderService
}

// NewLenderHandler creates a new LenderHandler
func NewLenderHandler(lenderService *service.LenderService) *LenderHandler {
	return &LenderHandler{lenderService: lenderService}
}

// LenderRequest represents the update lender request body
type LenderRequest struct {
	BusinessName       string  `json:"businessName"`
	Address            *string `json:"address,omitempty"`
	Phone              *string `json:"phone,omitempty"`
	Email              *string `json:"email,omitempty"`
	RegistrationNumber *string `json:"registrationNumber,omitempty"`
	LoanPrefix         string  `json:"loanPrefix"`
	InvoicePrefix      string  `json:"invoicePrefix"`
	DocumentPrefix     string  `json:"documentPrefix"`
}

// GetLender godoc
// @Summary Get the lender profile
// @Tags lender
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.Lender
// @Router /lender [get]
func (h *LenderHandler) GetLender(c echo.Context) error {
	lender, err := h.lenderService.GetLender(c.Request().Context())
	if err != nil {
		return handleServiceError(c, err, "get lender")
	}
	return c.JSON(http.StatusOK, lender)
}

// UpdateLender godoc
// @Summary Update the lender profile
// @Tags lender
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body LenderRequest true "Lender profile"
// @Success 200 {object} domain.Lender
// @Failure 400 {object} ProblemDetails
// @Router /lender [put]
func (h *LenderHandler) UpdateLender(c echo.Context) error {
	var req LenderRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	lender, err := h.lenderService.UpdateLender(c.Request().Context(), service.LenderInput{
		BusinessName:       req.BusinessName,
		Address:            req.Address,
		Phone:              req.Phone,
		Email:              req.Email,
		RegistrationNumber: req.RegistrationNumber,
		LoanPrefix:         req.LoanPrefix,
		InvoicePrefix:      req.InvoicePrefix,
		DocumentPrefix:     req.DocumentPrefix,
	})
	if err != nil {
		return handleServiceError(c, err, "update lender")
	}

	log.Info().Str("staff_id", middleware.GetStaffID(c)).Msg("Lender profile updated")

	return c.JSON(http.StatusOK, lender)
}

// UploadLogo godoc
// @Summary Upload the lender logo
// @Description Accepts JPEG or PNG up to 2MB; stored as PNG at most 512px wide
// @Tags lender
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Logo image"
// @Success 200 {object} domain.Lender
// @Failure 400 {object} ProblemDetails
// @Failure 503 {object} ProblemDetails
// @Router /lender/logo [post]
func (h *LenderHandler) UploadLogo(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewValidationError(c, "No file provided", []ValidationError{
			{Field: "file", Message: "File is required"},
		})
	}

	src, err := file.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open uploaded file")
		return NewInternalError(c, "Failed to process file")
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, service.MaxLogoSize+1))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read uploaded file")
		return NewInternalError(c, "Failed to read file")
	}

	lender, err := h.lenderService.UploadLogo(c.Request().Context(), data, file.Filename)
	if err != nil {
		if errors.Is(err, service.ErrDocumentStoreNotConfigured) {
			return NewServiceUnavailableError(c, "Logo uploads are disabled (storage not configured)")
		}
		return handleServiceError(c, err, "upload logo")
	}

	log.Info().Str("staff_id", middleware.GetStaffID(c)).Str("key", *lender.LogoKey).Msg("Lender logo uploaded")

	return c.JSON(http.StatusOK, lender)
}

// GetLogo godoc
// @Summary Download the lender logo
// @Tags lender
// @Produce png
// @Security BearerAuth
// @Success 200 {file} binary
// @Failure 404 {object} ProblemDetails
// @Router /lender/logo [get]
func (h *LenderHandler) GetLogo(c echo.Context) error {
	logo, err := h.lenderService.GetLogo(c.Request().Context())
	if err != nil {
		if errors.Is(err, service.ErrDocumentStoreNotConfigured) {
			return NewServiceUnavailableError(c, "Logo storage is not configured")
		}
		return handleServiceError(c, err, "get logo")
	}
	return c.Blob(http.StatusOK, "image/png", logo)
}
