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

const paymentColumns = `id, loan_id, customer_id, payment_number, kind, amount_paid, principal_portion,
	interest_portion, balance_after_payment, payment_method, payment_date, reference_id, notes,
	bank_details, created_at, updated_at`

// LoanPaymentRepository implements domain.LoanPaymentRepository using PostgreSQL
type LoanPaymentRepository struct {
	pool *pgxpool.Pool
}

// NewLoanPaymentRepository creates a new LoanPaymentRepository
func NewLoanPaymentRepository(pool *pgxpool.Pool) *LoanPaymentRepository {
	return &LoanPaymentRepository{pool: pool}
}

// Create records a payment
func (r *LoanPaymentRepository) Create(ctx context.Context, payment *domain.LoanPayment) (*domain.LoanPayment, error) {
	nums, err := numerics(payment.AmountPaid, payment.PrincipalPortion, payment.InterestPortion, payment.BalanceAfterPayment)
	if err != nil {
		return nil, err
	}
	bank, err := marshalJSONB(payment.BankDetails)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bank details: %w", err)
	}

	query := `
		INSERT INTO loan_payments (
			loan_id, customer_id, payment_number, kind, amount_paid, principal_portion,
			interest_portion, balance_after_payment, payment_method, payment_date, reference_id,
			notes, bank_details
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + paymentColumns

	row := conn(ctx, r.pool).QueryRow(ctx, query,
		payment.LoanID,
		payment.CustomerID,
		payment.PaymentNumber,
		string(payment.Kind),
		nums[0],
		nums[1],
		nums[2],
		nums[3],
		payment.PaymentMethod,
		timeToPgDate(payment.PaymentDate),
		ptrToPgText(payment.ReferenceID),
		ptrToPgText(payment.Notes),
		bank,
	)
	created, err := scanPayment(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return created, nil
}

// GetByID retrieves a payment by its ID
func (r *LoanPaymentRepository) GetByID(ctx context.Context, id int32) (*domain.LoanPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM loan_payments WHERE id = $1`

	payment, err := scanPayment(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment %d: %w", id, err)
	}
	return payment, nil
}

// GetByLoanID retrieves the payments of a loan in payment order
func (r *LoanPaymentRepository) GetByLoanID(ctx context.Context, loanID int32) ([]*domain.LoanPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM loan_payments WHERE loan_id = $1 ORDER BY payment_number, id`

	rows, err := conn(ctx, r.pool).Query(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.LoanPayment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

// Update writes the editable fields of a payment
func (r *LoanPaymentRepository) Update(ctx context.Context, payment *domain.LoanPayment) (*domain.LoanPayment, error) {
	bank, err := marshalJSONB(payment.BankDetails)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bank details: %w", err)
	}

	query := `
		UPDATE loan_payments
		SET payment_method = $2, payment_date = $3, reference_id = $4, notes = $5,
			bank_details = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + paymentColumns

	row := conn(ctx, r.pool).QueryRow(ctx, query,
		payment.ID,
		payment.PaymentMethod,
		timeToPgDate(payment.PaymentDate),
		ptrToPgText(payment.ReferenceID),
		ptrToPgText(payment.Notes),
		bank,
	)
	updated, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanPaymentNotFound
		}
		return nil, fmt.Errorf("failed to update payment %d: %w", payment.ID, err)
	}
	return updated, nil
}

// Delete removes a payment
func (r *LoanPaymentRepository) Delete(ctx context.Context, id int32) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM loan_payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLoanPaymentNotFound
	}
	return nil
}

func scanPayment(row pgx.Row) (*domain.LoanPayment, error) {
	var (
		p                                    domain.LoanPayment
		kind                                 string
		amount, principal, interest, balance pgtype.Numeric
		paymentDate                          pgtype.Date
		reference, notes                     pgtype.Text
		bankJSON                             []byte
	)
	err := row.Scan(
		&p.ID, &p.LoanID, &p.CustomerID, &p.PaymentNumber, &kind, &amount, &principal,
		&interest, &balance, &p.PaymentMethod, &paymentDate, &reference, &notes,
		&bankJSON, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Kind = domain.PaymentKind(kind)
	p.AmountPaid = pgNumericToDecimal(amount)
	p.PrincipalPortion = pgNumericToDecimal(principal)
	p.InterestPortion = pgNumericToDecimal(interest)
	p.BalanceAfterPayment = pgNumericToDecimal(balance)
	p.PaymentDate = pgDateToTime(paymentDate)
	p.ReferenceID = pgTextToPtr(reference)
	p.Notes = pgTextToPtr(notes)
	if p.BankDetails, err = unmarshalJSONB[domain.BankDetails](bankJSON); err != nil {
		return nil, fmt.Errorf("failed to decode bank details of payment %d: %w", p.ID, err)
	}
	return &p, nil
}
