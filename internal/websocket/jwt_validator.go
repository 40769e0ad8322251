package websocket

import (
	"context"
	"errors"

	"github.com/dafibh/lendora/lendora-backend/internal/middleware"
)

// ErrInvalidToken is returned for any token that does not identify a staff member
var ErrInvalidToken = errors.New("invalid token")

// TokenValidator resolves the access token a browser passes on /ws to the
// staff member it was issued to
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (staffID string, err error)
}

// StaffTokenValidator adapts the HTTP claims validator so websocket
// connections accept exactly the tokens the REST API accepts
type StaffTokenValidator struct {
	claims middleware.TokenValidator
}

func NewStaffTokenValidator(claims middleware.TokenValidator) *StaffTokenValidator {
	return &StaffTokenValidator{claims: claims}
}

func (v *StaffTokenValidator) ValidateToken(ctx context.Context, token string) (string, error) {
	claims, err := v.claims.ValidateToken(ctx, token)
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	_, staffID, ok := middleware.StaffSubject(claims)
	if !ok {
		return "", ErrInvalidToken
	}
	return staffID, nil
}
