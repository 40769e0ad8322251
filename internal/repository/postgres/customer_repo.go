package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const customerColumns = `id, name, phone, email, address, national_id, notes, created_at, updated_at`

// CustomerRepository implements domain.CustomerRepository using PostgreSQL
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository creates a new CustomerRepository
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// Create creates a new customer
func (r *CustomerRepository) Create(ctx context.Context, customer *domain.Customer) (*domain.Customer, error) {
	query := `
		INSERT INTO customers (name, phone, email, address, national_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + customerColumns

	row := conn(ctx, r.pool).QueryRow(ctx, query,
		customer.Name,
		customer.Phone,
		ptrToPgText(customer.Email),
		ptrToPgText(customer.Address),
		ptrToPgText(customer.NationalID),
		ptrToPgText(customer.Notes),
	)
	created, err := scanCustomer(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return created, nil
}

// GetByID retrieves a customer by its ID
func (r *CustomerRepository) GetByID(ctx context.Context, id int32) (*domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	customer, err := scanCustomer(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer %d: %w", id, err)
	}
	return customer, nil
}

// List retrieves customers ordered by name, optionally filtered by a
// case-insensitive match on name or phone
func (r *CustomerRepository) List(ctx context.Context, search string) ([]*domain.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%' OR phone ILIKE '%' || $1 || '%'
		ORDER BY name, id`

	rows, err := conn(ctx, r.pool).Query(ctx, query, search)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []*domain.Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	return customers, rows.Err()
}

// Update replaces the editable fields of a customer
func (r *CustomerRepository) Update(ctx context.Context, customer *domain.Customer) (*domain.Customer, error) {
	query := `
		UPDATE customers
		SET name = $2, phone = $3, email = $4, address = $5, national_id = $6, notes = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + customerColumns

	row := conn(ctx, r.pool).QueryRow(ctx, query,
		customer.ID,
		customer.Name,
		customer.Phone,
		ptrToPgText(customer.Email),
		ptrToPgText(customer.Address),
		ptrToPgText(customer.NationalID),
		ptrToPgText(customer.Notes),
	)
	updated, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to update customer %d: %w", customer.ID, err)
	}
	return updated, nil
}

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var (
		c                                 domain.Customer
		email, address, nationalID, notes pgtype.Text
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &email, &address, &nationalID, &notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Email = pgTextToPtr(email)
	c.Address = pgTextToPtr(address)
	c.NationalID = pgTextToPtr(nationalID)
	c.Notes = pgTextToPtr(notes)
	return &c, nil
}
