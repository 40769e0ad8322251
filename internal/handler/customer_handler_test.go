package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCustomer(t *testing.T) {
	e := echo.New()
	b := newBackOffice()
	handler := NewCustomerHandler(b.customers)

	c, rec := newContext(e, http.MethodPost, "/api/v1/customers", `{"name":"  Ravi Kumar ","phone":"555-0199","email":"ravi@example.com"}`)

	err := handler.CreateCustomer(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp domain.Customer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotZero(t, resp.ID)
	assert.Equal(t, "555-0199", resp.Phone)
	require.NotNil(t, resp.Email)
	assert.Equal(t, "ravi@example.com", *resp.Email)
}

func TestCreateCustomer_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"phone":"555-0100"}`},
		{"missing phone", `{"name":"Ravi"}`},
		{"malformed body", `{"name":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			b := newBackOffice()
			handler := NewCustomerHandler(b.customers)

			c, rec := newContext(e, http.MethodPost, "/api/v1/customers", tt.body)
			require.NoError(t, handler.CreateCustomer(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Len(t, b.customerRepo.Customers, 1)
		})
	}
}

func TestGetCustomers_Search(t *testing.T) {
	e := echo.New()
	b := newBackOffice()
	b.customerRepo.AddCustomer(&domain.Customer{ID: 2, Name: "Ravi Kumar", Phone: "555-0199"})
	handler := NewCustomerHandler(b.customers)

	c, rec := newContext(e, http.MethodGet, "/api/v1/customers?search=ravi", "")
	require.NoError(t, handler.GetCustomers(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []domain.Customer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, int32(2), resp[0].ID)

	c, rec = newContext(e, http.MethodGet, "/api/v1/customers?search=nobody", "")
	require.NoError(t, handler.GetCustomers(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestUpdateCustomer(t *testing.T) {
	e := echo.New()
	b := newBackOffice()
	handler := NewCustomerHandler(b.customers)

	c, rec := newContext(e, http.MethodPut, "/api/v1/customers/1", `{"name":"Asha R. Rao","phone":"555-0102"}`)
	withParams(c, "id", "1")
	require.NoError(t, handler.UpdateCustomer(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Asha R. Rao", b.customerRepo.Customers[1].Name)
	assert.Equal(t, "555-0102", b.customerRepo.Customers[1].Phone)

	c, rec = newContext(e, http.MethodPut, "/api/v1/customers/5", `{"name":"Nobody","phone":"1"}`)
	withParams(c, "id", "5")
	require.NoError(t, handler.UpdateCustomer(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCustomerLoans(t *testing.T) {
	e := echo.New()
	b := newBackOffice()
	b.addActiveLoan(1)
	b.addActiveLoan(2)
	b.customerRepo.AddCustomer(&domain.Customer{ID: 2, Name: "Ravi Kumar", Phone: "555-0199"})
	b.loanRepo.AddLoan(&domain.Loan{ID: 3, CustomerID: 2, Status: domain.LoanStatusPendingApproval})
	handler := NewCustomerHandler(b.customers)

	c, rec := newContext(e, http.MethodGet, "/api/v1/customers/1/loans", "")
	withParams(c, "id", "1")
	require.NoError(t, handler.GetCustomerLoans(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []LoanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)

	c, rec = newContext(e, http.MethodGet, "/api/v1/customers/9/loans", "")
	withParams(c, "id", "9")
	require.NoError(t, handler.GetCustomerLoans(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
