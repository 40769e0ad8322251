package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const problemTypeBase = "https://lendora.app/errors/"

// problemDetails mirrors the RFC 7807 body the handlers return, so requests
// rejected before reaching a handler look the same to API clients
type problemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func problem(c echo.Context, status int, slug, detail string) error {
	return c.JSON(status, problemDetails{
		Type:     problemTypeBase + slug,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

func unauthorizedError(c echo.Context, detail string) error {
	return problem(c, http.StatusUnauthorized, "unauthorized", detail)
}

func rateLimitError(c echo.Context, detail string) error {
	return problem(c, http.StatusTooManyRequests, "rate-limit", detail)
}
