package service

import (
	"context"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/websocket"
)

// CustomerService handles customer records
type CustomerService struct {
	customerRepo   domain.CustomerRepository
	loanRepo       domain.LoanRepository
	eventPublisher websocket.EventPublisher
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(customerRepo domain.CustomerRepository, loanRepo domain.LoanRepository) *CustomerService {
	return &CustomerService{
		customerRepo: customerRepo,
		loanRepo:     loanRepo,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *CustomerService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// CustomerInput contains the editable customer fields
type CustomerInput struct {
	Name       string
	Phone      string
	Email      *string
	Address    *string
	NationalID *string
	Notes      *string
}

func (in CustomerInput) apply(c *domain.Customer) {
	c.Name = in.Name
	c.Phone = in.Phone
	c.Email = in.Email
	c.Address = in.Address
	c.NationalID = in.NationalID
	c.Notes = in.Notes
}

// CreateCustomer validates and stores a new customer
func (s *CustomerService) CreateCustomer(ctx context.Context, input CustomerInput) (*domain.Customer, error) {
	customer := &domain.Customer{}
	input.apply(customer)
	if err := customer.Validate(); err != nil {
		return nil, err
	}

	created, err := s.customerRepo.Create(ctx, customer)
	if err != nil {
		return nil, err
	}

	if s.eventPublisher != nil {
		s.eventPublisher.Publish(websocket.CustomerCreated(created))
	}
	return created, nil
}

// UpdateCustomer replaces the editable fields of a customer
func (s *CustomerService) UpdateCustomer(ctx context.Context, id int32, input CustomerInput) (*domain.Customer, error) {
	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	input.apply(customer)
	if err := customer.Validate(); err != nil {
		return nil, err
	}
	return s.customerRepo.Update(ctx, customer)
}

// GetCustomer retrieves a customer by ID
func (s *CustomerService) GetCustomer(ctx context.Context, id int32) (*domain.Customer, error) {
	return s.customerRepo.GetByID(ctx, id)
}

// ListCustomers retrieves customers, optionally filtered by name or phone
func (s *CustomerService) ListCustomers(ctx context.Context, search string) ([]*domain.Customer, error) {
	return s.customerRepo.List(ctx, search)
}

// GetCustomerLoans retrieves every loan of a customer
func (s *CustomerService) GetCustomerLoans(ctx context.Context, id int32) ([]*domain.Loan, error) {
	if _, err := s.customerRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.loanRepo.List(ctx, domain.LoanFilter{CustomerID: id})
}
