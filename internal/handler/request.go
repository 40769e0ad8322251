package handler

import (
	"strings"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/util"
	"github.com/shopspring/decimal"
)

// parseAmount parses a required decimal field
func parseAmount(field, value string) (decimal.Decimal, *ValidationError) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Message: "Must be a valid decimal number"}
	}
	return d, nil
}

// parseOptionalAmount parses a decimal field that may be omitted
func parseOptionalAmount(field string, value *string) (*decimal.Decimal, *ValidationError) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	d, verr := parseAmount(field, *value)
	if verr != nil {
		return nil, verr
	}
	return &d, nil
}

// parseDate parses a required YYYY-MM-DD field
func parseDate(field, value string) (time.Time, *ValidationError) {
	t, err := util.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Message: "Must be in YYYY-MM-DD format"}
	}
	return t, nil
}

// parseOptionalDate parses a date field that may be omitted
func parseOptionalDate(field string, value *string) (*time.Time, *ValidationError) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	t, verr := parseDate(field, *value)
	if verr != nil {
		return nil, verr
	}
	return &t, nil
}

// collect gathers the non-nil validation errors
func collect(errs ...*ValidationError) []ValidationError {
	var out []ValidationError
	for _, e := range errs {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
