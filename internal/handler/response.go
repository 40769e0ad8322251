package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Problem type URIs returned in ProblemDetails.Type
const (
	ErrorTypeValidation   = "https://lendora.app/errors/validation"
	ErrorTypeNotFound     = "https://lendora.app/errors/not-found"
	ErrorTypeUnauthorized = "https://lendora.app/errors/unauthorized"
	ErrorTypeForbidden    = "https://lendora.app/errors/forbidden"
	ErrorTypeConflict     = "https://lendora.app/errors/conflict"
	ErrorTypeInternal     = "https://lendora.app/errors/internal"
	ErrorTypeUnavailable  = "https://lendora.app/errors/unavailable"
)

// writeProblem sends an application/problem+json body for the current request
func writeProblem(c echo.Context, status int, problemType, detail string, fields []ValidationError) error {
	title := http.StatusText(status)
	if problemType == ErrorTypeValidation {
		title = "Validation Error"
	}
	body, err := json.Marshal(ProblemDetails{
		Type:     problemType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Errors:   fields,
	})
	if err != nil {
		return err
	}
	return c.Blob(status, mimeProblemJSON, body)
}

const mimeProblemJSON = "application/problem+json"

func NewValidationError(c echo.Context, detail string, fields []ValidationError) error {
	return writeProblem(c, http.StatusBadRequest, ErrorTypeValidation, detail, fields)
}

func NewNotFoundError(c echo.Context, detail string) error {
	return writeProblem(c, http.StatusNotFound, ErrorTypeNotFound, detail, nil)
}

func NewUnauthorizedError(c echo.Context, detail string) error {
	return writeProblem(c, http.StatusUnauthorized, ErrorTypeUnauthorized, detail, nil)
}

func NewForbiddenError(c echo.Context, detail string) error {
	return writeProblem(c, http.StatusForbidden, ErrorTypeForbidden, detail, nil)
}

func NewConflictError(c echo.Context, detail string) error {
	return writeProblem(c, http.StatusConflict, ErrorTypeConflict, detail, nil)
}

// NewInternalError hides the cause from the client; log it before calling
func NewInternalError(c echo.Context, detail string) error {
	return writeProblem(c, http.StatusInternalServerError, ErrorTypeInternal, detail, nil)
}

func NewServiceUnavailableError(c echo.Context, detail string) error {
	return writeProblem(c, http.StatusServiceUnavailable, ErrorTypeUnavailable, detail, nil)
}

// handleServiceError writes the problem response matching the kind of a
// service error. Errors without a domain kind are logged and reported as 500.
func handleServiceError(c echo.Context, err error, action string) error {
	for _, m := range problemKinds {
		if errors.Is(err, m.kind) {
			return m.write(c, err.Error())
		}
	}
	log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("Failed to " + action)
	return NewInternalError(c, "Failed to "+action)
}

// problemKinds maps domain error kinds to responses, checked in order
var problemKinds = []struct {
	kind  error
	write func(echo.Context, string) error
}{
	{domain.ErrNotFound, NewNotFoundError},
	{domain.ErrInvalidInput, func(c echo.Context, detail string) error { return NewValidationError(c, detail, nil) }},
	{domain.ErrInvalidState, NewConflictError},
	{domain.ErrInvalidOperation, NewConflictError},
	{domain.ErrAlreadySettled, NewConflictError},
	{domain.ErrNotAllowed, NewForbiddenError},
	{domain.ErrUnauthorized, NewUnauthorizedError},
}

// parseIDParam reads a positive int32 path parameter
func parseIDParam(c echo.Context, name string) (int32, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil || id <= 0 {
		return 0, false
	}
	return int32(id), true
}
