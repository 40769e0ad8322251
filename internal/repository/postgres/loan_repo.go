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

const loanColumns = `id, loan_number, customer_id, principal, monthly_interest_rate, duration_months,
	interest_type, start_date, end_date, monthly_emi, emi_override, total_amount_payable,
	total_interest_amount, remaining_balance, payments_received, schedule, status,
	approval_date, purpose, notes, settlement, created_at, updated_at`

// LoanRepository implements domain.LoanRepository using PostgreSQL
type LoanRepository struct {
	pool *pgxpool.Pool
}

// NewLoanRepository creates a new LoanRepository
func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

// loanParams holds the encoded column values shared by insert and update
type loanParams struct {
	numbers    []pgtype.Numeric
	schedule   []byte
	settlement []byte
}

func encodeLoan(loan *domain.Loan) (*loanParams, error) {
	nums, err := numerics(
		loan.Principal,
		loan.MonthlyInterestRate,
		loan.MonthlyEMI,
		loan.TotalAmountPayable,
		loan.TotalInterestAmount,
		loan.RemainingBalance,
	)
	if err != nil {
		return nil, err
	}

	schedule := loan.Schedule
	if schedule == nil {
		schedule = []domain.ScheduleEntry{}
	}
	scheduleJSON, err := marshalJSONB(&schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schedule: %w", err)
	}
	settlementJSON, err := marshalJSONB(loan.Settlement)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settlement: %w", err)
	}

	return &loanParams{numbers: nums, schedule: scheduleJSON, settlement: settlementJSON}, nil
}

// Create creates a new loan
func (r *LoanRepository) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	p, err := encodeLoan(loan)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO loans (
			loan_number, customer_id, principal, monthly_interest_rate, duration_months,
			interest_type, start_date, end_date, monthly_emi, emi_override, total_amount_payable,
			total_interest_amount, remaining_balance, payments_received, schedule, status,
			approval_date, purpose, notes, settlement
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING ` + loanColumns

	row := conn(ctx, r.pool).QueryRow(ctx, query,
		loan.LoanNumber,
		loan.CustomerID,
		p.numbers[0],
		p.numbers[1],
		loan.DurationMonths,
		string(loan.InterestType),
		timeToPgDate(loan.StartDate),
		timeToPgDate(loan.EndDate),
		p.numbers[2],
		loan.EMIOverride,
		p.numbers[3],
		p.numbers[4],
		p.numbers[5],
		loan.PaymentsReceived,
		p.schedule,
		string(loan.Status),
		ptrToPgTimestamptz(loan.ApprovalDate),
		ptrToPgText(loan.Purpose),
		ptrToPgText(loan.Notes),
		p.settlement,
	)
	created, err := scanLoan(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}
	return created, nil
}

// GetByID retrieves a loan by its ID
func (r *LoanRepository) GetByID(ctx context.Context, id int32) (*domain.Loan, error) {
	return r.get(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a loan and locks its row until the enclosing
// transaction ends
func (r *LoanRepository) GetByIDForUpdate(ctx context.Context, id int32) (*domain.Loan, error) {
	return r.get(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id)
}

func (r *LoanRepository) get(ctx context.Context, query string, id int32) (*domain.Loan, error) {
	loan, err := scanLoan(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to get loan %d: %w", id, err)
	}
	return loan, nil
}

// List retrieves loans newest first, filtered by status and customer
func (r *LoanRepository) List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE ($1 = '' OR status = $1) AND ($2 = 0 OR customer_id = $2)
		ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, string(filter.Status), filter.CustomerID)
}

// ListInvoiceable retrieves active loans that still carry a balance
func (r *LoanRepository) ListInvoiceable(ctx context.Context) ([]*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE status = 'active' AND remaining_balance > 0
		ORDER BY id`
	return r.list(ctx, query)
}

func (r *LoanRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Loan, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []*domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

// Update writes every mutable column of a loan
func (r *LoanRepository) Update(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	p, err := encodeLoan(loan)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE loans
		SET customer_id = $2, principal = $3, monthly_interest_rate = $4, duration_months = $5,
			interest_type = $6, start_date = $7, end_date = $8, monthly_emi = $9, emi_override = $10,
			total_amount_payable = $11, total_interest_amount = $12, remaining_balance = $13,
			payments_received = $14, schedule = $15, status = $16, approval_date = $17,
			purpose = $18, notes = $19, settlement = $20, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + loanColumns

	row := conn(ctx, r.pool).QueryRow(ctx, query,
		loan.ID,
		loan.CustomerID,
		p.numbers[0],
		p.numbers[1],
		loan.DurationMonths,
		string(loan.InterestType),
		timeToPgDate(loan.StartDate),
		timeToPgDate(loan.EndDate),
		p.numbers[2],
		loan.EMIOverride,
		p.numbers[3],
		p.numbers[4],
		p.numbers[5],
		loan.PaymentsReceived,
		p.schedule,
		string(loan.Status),
		ptrToPgTimestamptz(loan.ApprovalDate),
		ptrToPgText(loan.Purpose),
		ptrToPgText(loan.Notes),
		p.settlement,
	)
	updated, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to update loan %d: %w", loan.ID, err)
	}
	return updated, nil
}

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var (
		l                                      domain.Loan
		principal, rate, emi                   pgtype.Numeric
		totalPayable, totalInterest, remaining pgtype.Numeric
		interestType, status                   string
		startDate, endDate                     pgtype.Date
		approvalDate                           pgtype.Timestamptz
		purpose, notes                         pgtype.Text
		scheduleJSON, settlementJSON           []byte
	)
	err := row.Scan(
		&l.ID, &l.LoanNumber, &l.CustomerID, &principal, &rate, &l.DurationMonths,
		&interestType, &startDate, &endDate, &emi, &l.EMIOverride, &totalPayable,
		&totalInterest, &remaining, &l.PaymentsReceived, &scheduleJSON, &status,
		&approvalDate, &purpose, &notes, &settlementJSON, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Principal = pgNumericToDecimal(principal)
	l.MonthlyInterestRate = pgNumericToDecimal(rate)
	l.MonthlyEMI = pgNumericToDecimal(emi)
	l.TotalAmountPayable = pgNumericToDecimal(totalPayable)
	l.TotalInterestAmount = pgNumericToDecimal(totalInterest)
	l.RemainingBalance = pgNumericToDecimal(remaining)
	l.InterestType = domain.InterestType(interestType)
	l.Status = domain.LoanStatus(status)
	l.StartDate = pgDateToTime(startDate)
	l.EndDate = pgDateToTime(endDate)
	l.ApprovalDate = pgTimestamptzToPtr(approvalDate)
	l.Purpose = pgTextToPtr(purpose)
	l.Notes = pgTextToPtr(notes)

	schedule, err := unmarshalJSONB[[]domain.ScheduleEntry](scheduleJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode schedule of loan %d: %w", l.ID, err)
	}
	if schedule != nil {
		l.Schedule = *schedule
	}
	if l.Settlement, err = unmarshalJSONB[domain.Settlement](settlementJSON); err != nil {
		return nil, fmt.Errorf("failed to decode settlement of loan %d: %w", l.ID, err)
	}
	return &l, nil
}
