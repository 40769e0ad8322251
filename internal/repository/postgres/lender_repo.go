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

const lenderColumns = `id, business_name, address, phone, email, registration_number,
	loan_prefix, invoice_prefix, document_prefix, logo_key, created_at, updated_at`

// LenderRepository implements domain.LenderRepository using PostgreSQL.
// The lenders table holds at most one row.
type LenderRepository struct {
	pool *pgxpool.Pool
}

// NewLenderRepository creates a new LenderRepository
func NewLenderRepository(pool *pgxpool.Pool) *LenderRepository {
	return &LenderRepository{pool: pool}
}

// GetOrCreate returns the lender row, inserting defaults when none exists
func (r *LenderRepository) GetOrCreate(ctx context.Context, defaults *domain.Lender) (*domain.Lender, error) {
	q := conn(ctx, r.pool)

	insert := `
		INSERT INTO lenders (business_name, loan_prefix, invoice_prefix, document_prefix)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (singleton) DO NOTHING`
	if _, err := q.Exec(ctx, insert, defaults.BusinessName, defaults.LoanPrefix, defaults.InvoicePrefix, defaults.DocumentPrefix); err != nil {
		return nil, fmt.Errorf("failed to create lender: %w", err)
	}

	lender, err := scanLender(q.QueryRow(ctx, `SELECT `+lenderColumns+` FROM lenders LIMIT 1`))
	if err != nil {
		return nil, fmt.Errorf("failed to get lender: %w", err)
	}
	return lender, nil
}

// Update replaces the lender profile
func (r *LenderRepository) Update(ctx context.Context, lender *domain.Lender) (*domain.Lender, error) {
	query := `
		UPDATE lenders
		SET business_name = $2, address = $3, phone = $4, email = $5, registration_number = $6,
			loan_prefix = $7, invoice_prefix = $8, document_prefix = $9, logo_key = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + lenderColumns

	row := conn(ctx, r.pool).QueryRow(ctx, query,
		lender.ID,
		lender.BusinessName,
		ptrToPgText(lender.Address),
		ptrToPgText(lender.Phone),
		ptrToPgText(lender.Email),
		ptrToPgText(lender.RegistrationNumber),
		lender.LoanPrefix,
		lender.InvoicePrefix,
		lender.DocumentPrefix,
		ptrToPgText(lender.LogoKey),
	)
	updated, err := scanLender(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewError(domain.ErrNotFound, "lender not found")
		}
		return nil, fmt.Errorf("failed to update lender: %w", err)
	}
	return updated, nil
}

func scanLender(row pgx.Row) (*domain.Lender, error) {
	var (
		l                                   domain.Lender
		address, phone, email, registration pgtype.Text
		logoKey                             pgtype.Text
	)
	err := row.Scan(
		&l.ID, &l.BusinessName, &address, &phone, &email, &registration,
		&l.LoanPrefix, &l.InvoicePrefix, &l.DocumentPrefix, &logoKey, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Address = pgTextToPtr(address)
	l.Phone = pgTextToPtr(phone)
	l.Email = pgTextToPtr(email)
	l.RegistrationNumber = pgTextToPtr(registration)
	l.LogoKey = pgTextToPtr(logoKey)
	return &l, nil
}
