package domain

import (
	"context"
	"strings"
	"time"
)

var (
	ErrCustomerNotFound     = NewError(ErrNotFound, "customer not found")
	ErrCustomerNameRequired = NewError(ErrInvalidInput, "customer name is required")
	ErrCustomerNameTooLong  = NewError(ErrInvalidInput, "customer name exceeds maximum length")
	ErrCustomerPhoneEmpty   = NewError(ErrInvalidInput, "customer phone is required")
)

type Customer struct {
	ID         int32     `json:"id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Email      *string   `json:"email,omitempty"`
	Address    *string   `json:"address,omitempty"`
	NationalID *string   `json:"nationalId,omitempty"`
	Notes      *string   `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (c *Customer) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	if c.Name == "" {
		return ErrCustomerNameRequired
	}
	if len(c.Name) > MaxNameLength {
		return ErrCustomerNameTooLong
	}
	if c.Phone == "" {
		return ErrCustomerPhoneEmpty
	}
	return nil
}

type CustomerRepository interface {
	Create(ctx context.Context, customer *Customer) (*Customer, error)
	GetByID(ctx context.Context, id int32) (*Customer, error)
	// List returns customers whose name or phone contains search; empty search lists all.
	List(ctx context.Context, search string) ([]*Customer, error)
	Update(ctx context.Context, customer *Customer) (*Customer, error)
}
