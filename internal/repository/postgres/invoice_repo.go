package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const invoiceColumns = `id, invoice_number, loan_id, customer_id, period_month, period_year,
	amount_due, amount_paid, balance_due, due_date, status, created_at, updated_at`

// InvoiceRepository implements domain.InvoiceRepository using PostgreSQL
type InvoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository creates a new InvoiceRepository
func NewInvoiceRepository(pool *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

// Create inserts an invoice. A second invoice for the same loan and period
// is rejected by the unique constraint and reported as domain.ErrInvoiceExists.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) (*domain.Invoice, error) {
	nums, err := numerics(invoice.AmountDue, invoice.AmountPaid, invoice.BalanceDue)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO invoices (
			invoice_number, loan_id, customer_id, period_month, period_year,
			amount_due, amount_paid, balance_due, due_date, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + invoiceColumns

	row := conn(ctx, r.pool).QueryRow(ctx, query,
		invoice.InvoiceNumber,
		invoice.LoanID,
		invoice.CustomerID,
		invoice.PeriodMonth,
		invoice.PeriodYear,
		nums[0],
		nums[1],
		nums[2],
		timeToPgDate(invoice.DueDate),
		string(invoice.Status),
	)
	created, err := scanInvoice(row)
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, domain.ErrInvoiceExists
		}
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	return created, nil
}

// GetByID retrieves an invoice by its ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id int32) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	invoice, err := scanInvoice(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice %d: %w", id, err)
	}
	return invoice, nil
}

// ExistsForPeriod reports whether the loan already has an invoice for the period
func (r *InvoiceRepository) ExistsForPeriod(ctx context.Context, loanID int32, month, year int32) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM invoices WHERE loan_id = $1 AND period_month = $2 AND period_year = $3
		)`

	var exists bool
	if err := conn(ctx, r.pool).QueryRow(ctx, query, loanID, month, year).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check invoice period: %w", err)
	}
	return exists, nil
}

// List retrieves invoices by due date, filtered by status and loan
func (r *InvoiceRepository) List(ctx context.Context, filter domain.InvoiceFilter) ([]*domain.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE ($1 = '' OR status = $1) AND ($2 = 0 OR loan_id = $2)
		ORDER BY due_date DESC, id DESC`

	rows, err := conn(ctx, r.pool).Query(ctx, query, string(filter.Status), filter.LoanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*domain.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// UpdateStatus writes the status and paid amounts of an invoice
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, invoice *domain.Invoice) (*domain.Invoice, error) {
	nums, err := numerics(invoice.AmountPaid, invoice.BalanceDue)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE invoices
		SET status = $2, amount_paid = $3, balance_due = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + invoiceColumns

	updated, err := scanInvoice(conn(ctx, r.pool).QueryRow(ctx, query, invoice.ID, string(invoice.Status), nums[0], nums[1]))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to update invoice %d: %w", invoice.ID, err)
	}
	return updated, nil
}

// MarkOverdue flags pending and issued invoices due before asOf
func (r *InvoiceRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	query := `
		UPDATE invoices
		SET status = 'overdue', updated_at = NOW()
		WHERE status IN ('pending', 'issued') AND due_date < $1`

	tag, err := conn(ctx, r.pool).Exec(ctx, query, timeToPgDate(asOf))
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue invoices: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var (
		i                        domain.Invoice
		amountDue, paid, balance pgtype.Numeric
		dueDate                  pgtype.Date
		status                   string
	)
	err := row.Scan(
		&i.ID, &i.InvoiceNumber, &i.LoanID, &i.CustomerID, &i.PeriodMonth, &i.PeriodYear,
		&amountDue, &paid, &balance, &dueDate, &status, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	i.AmountDue = pgNumericToDecimal(amountDue)
	i.AmountPaid = pgNumericToDecimal(paid)
	i.BalanceDue = pgNumericToDecimal(balance)
	i.DueDate = pgDateToTime(dueDate)
	i.Status = domain.InvoiceStatus(status)
	return &i, nil
}
