package websocket

import (
	"context"
	"errors"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/dafibh/lendora/lendora-backend/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClaimsValidator struct {
	claims interface{}
	err    error
}

func (s stubClaimsValidator) ValidateToken(context.Context, string) (interface{}, error) {
	return s.claims, s.err
}

func TestStaffTokenValidator(t *testing.T) {
	subject := func(sub string) *validator.ValidatedClaims {
		return &validator.ValidatedClaims{RegisteredClaims: validator.RegisteredClaims{Subject: sub}}
	}

	tests := []struct {
		name    string
		claims  stubClaimsValidator
		staffID string
		wantErr bool
	}{
		{"valid token", stubClaimsValidator{claims: subject("auth0|cashier")}, "auth0|cashier", false},
		{"rejected token", stubClaimsValidator{err: errors.New("token is expired")}, "", true},
		{"missing subject", stubClaimsValidator{claims: subject("")}, "", true},
		{"foreign claims", stubClaimsValidator{claims: "not claims"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			staffID, err := NewStaffTokenValidator(tt.claims).ValidateToken(context.Background(), "token")
			assert.Equal(t, tt.staffID, staffID)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStaffTokenValidator_Auth0RejectsGarbage(t *testing.T) {
	claims, err := middleware.NewAuth0Validator("tenant.auth0.com", "https://api.lendora.app")
	require.NoError(t, err)

	staffID, err := NewStaffTokenValidator(claims).ValidateToken(context.Background(), "invalid-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Empty(t, staffID)
}
