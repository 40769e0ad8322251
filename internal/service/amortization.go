package service

import (
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/util"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// EstimateInput contains the terms a loan estimate is computed from.
type EstimateInput struct {
	Principal    decimal.Decimal
	MonthlyRate  decimal.Decimal // percent per month
	Tenure       int32
	InterestType domain.InterestType
	StartDate    time.Time
	EMIOverride  *decimal.Decimal // manual EMI, takes precedence over the calculated one
}

// LoanEstimate is the full set of derived numbers for a loan's terms.
type LoanEstimate struct {
	MonthlyEMI          decimal.Decimal        `json:"monthlyEmi"`
	TotalAmountPayable  decimal.Decimal        `json:"totalAmountPayable"`
	TotalInterestAmount decimal.Decimal        `json:"totalInterestAmount"`
	StartDate           time.Time              `json:"startDate"`
	EndDate             time.Time              `json:"endDate"`
	Schedule            []domain.ScheduleEntry `json:"amortizationSchedule"`
}

// CalculateLoanEstimate is the single entry point for turning loan terms into
// EMI, schedule and totals. Loan creation and the public calculator both go
// through it so identical inputs always produce identical numbers.
func CalculateLoanEstimate(input EstimateInput) (*LoanEstimate, error) {
	if err := domain.ValidateTerms(input.Principal, input.MonthlyRate, input.Tenure, input.InterestType); err != nil {
		return nil, err
	}
	if input.StartDate.IsZero() {
		return nil, domain.ErrLoanStartDateRequired
	}

	emi, err := CalculateMonthlyEMI(input.Principal, input.MonthlyRate, int(input.Tenure))
	if err != nil {
		return nil, err
	}
	if input.EMIOverride != nil {
		override := input.EMIOverride.Round(2)
		if !override.IsPositive() {
			return nil, domain.ErrLoanEMIInvalid
		}
		firstInterest := input.Principal.Mul(input.MonthlyRate.Div(hundred)).Round(2)
		if input.MonthlyRate.IsPositive() && override.LessThanOrEqual(firstInterest) {
			return nil, domain.ErrLoanEMIBelowInterest
		}
		emi = override
	}

	startDate := util.DateOnly(input.StartDate)
	schedule := GenerateAmortizationSchedule(input.Principal, input.MonthlyRate, int(input.Tenure), emi, startDate, input.InterestType)
	totalPayable := emi.Mul(decimal.NewFromInt(int64(input.Tenure))).Round(2)

	return &LoanEstimate{
		MonthlyEMI:          emi,
		TotalAmountPayable:  totalPayable,
		TotalInterestAmount: CalculateTotalInterest(emi, int(input.Tenure), input.Principal),
		StartDate:           startDate,
		EndDate:             util.AddMonths(startDate, int(input.Tenure)),
		Schedule:            schedule,
	}, nil
}

// CalculateMonthlyEMI calculates the reducing-balance installment
// Formula: P * r * (1+r)^n / ((1+r)^n - 1), r = monthlyRatePercent / 100
func CalculateMonthlyEMI(principal, monthlyRatePercent decimal.Decimal, tenureMonths int) (decimal.Decimal, error) {
	if tenureMonths <= 0 {
		return decimal.Zero, domain.ErrLoanTenureInvalid
	}
	n := decimal.NewFromInt(int64(tenureMonths))
	if monthlyRatePercent.IsZero() {
		return principal.Div(n).Round(2), nil
	}

	r := monthlyRatePercent.Div(hundred)
	growth := decimal.NewFromInt(1).Add(r).Pow(n)
	numerator := principal.Mul(r).Mul(growth)
	denominator := growth.Sub(decimal.NewFromInt(1))
	return numerator.Div(denominator).Round(2), nil
}

// GenerateAmortizationSchedule projects the installments of a loan. Every
// derived amount is rounded to the cent as it is produced, so rounding drift
// is carried month to month and the last row is not trued up. The schedule
// stops early once the balance is cleared.
//
// Interest the EMI does not cover is dropped for simple loans and added to the
// balance for compound loans.
func GenerateAmortizationSchedule(principal, monthlyRatePercent decimal.Decimal, tenureMonths int, emi decimal.Decimal, startDate time.Time, interestType domain.InterestType) []domain.ScheduleEntry {
	if tenureMonths <= 0 {
		return nil
	}

	r := monthlyRatePercent.Div(hundred)
	balance := principal.Round(2)
	schedule := make([]domain.ScheduleEntry, 0, tenureMonths)

	for month := 1; month <= tenureMonths; month++ {
		interest := balance.Mul(r).Round(2)
		principalPortion := emi.Sub(interest).Round(2)

		if principalPortion.IsNegative() {
			shortfall := principalPortion.Neg()
			principalPortion = decimal.Zero
			interest = emi
			if interestType == domain.InterestTypeCompound {
				balance = balance.Add(shortfall)
			}
		}

		balance = balance.Sub(principalPortion).Round(2)
		if balance.IsNegative() {
			balance = decimal.Zero
		}

		schedule = append(schedule, domain.ScheduleEntry{
			Month:     int32(month),
			EMI:       emi,
			Principal: principalPortion,
			Interest:  interest,
			Balance:   balance,
			DueDate:   util.AddMonths(startDate, month),
		})

		if !balance.IsPositive() {
			break
		}
	}

	return schedule
}

// CalculateTotalInterest returns emi*tenure - principal
func CalculateTotalInterest(emi decimal.Decimal, tenureMonths int, principal decimal.Decimal) decimal.Decimal {
	return emi.Mul(decimal.NewFromInt(int64(tenureMonths))).Sub(principal).Round(2)
}
