// Package loan prices installment loans and rolls up outstanding debt. It
// knows nothing about the ledger or about approval decisions; callers obtain
// a quote here and commit (or reject) elsewhere.
package loan

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/ledger-engine/internal/money"
)

var (
	// ErrInvalidParameters rejects a non-positive principal, an installment
	// count outside the policy bounds, or a principal too small to amortize.
	ErrInvalidParameters = errors.New("loan: invalid principal or installment count")
	// ErrExceedsLimit rejects a principal beyond the account's credit limit.
	ErrExceedsLimit = errors.New("loan: principal exceeds available credit limit")
)

// Policy holds the pricing constants. They are parameters, not magic
// numbers, so the rate schedule can change without touching the math.
type Policy struct {
	BaseRate        decimal.Decimal // percent per month at one installment
	StepRate        decimal.Decimal // added per installment
	MinInstallments int
	MaxInstallments int
	Scale           int32 // fractional digits of quoted amounts
	Rounding        money.Rounding
}

// DefaultPolicy is the production rate schedule: 2.5% + 0.1% per
// installment, 1 to 24 installments, two fractional digits.
func DefaultPolicy() Policy {
	return Policy{
		BaseRate:        decimal.NewFromFloat(2.5),
		StepRate:        decimal.NewFromFloat(0.1),
		MinInstallments: 1,
		MaxInstallments: 24,
		Scale:           money.DefaultScale,
		Rounding:        money.RoundHalfUp,
	}
}

// Quote is a fully priced loan offer.
type Quote struct {
	Principal          money.Money     `json:"principal"`
	Installments       int             `json:"installments"`
	MonthlyRatePercent decimal.Decimal `json:"monthly_rate_percent"`
	InstallmentAmount  money.Money     `json:"installment_amount"`
	TotalToPay         money.Money     `json:"total_to_pay"`
}

// Price quotes a loan using simple interest:
//
//	rate  = BaseRate + StepRate × installments
//	total = principal × (1 + rate × installments / 100)
//
// Rounding is per installment: the installment is the raw total divided by
// the installment count and rounded once, and the quoted total is exactly
// installment × count. The two therefore never drift apart, and the raw
// total is computed at full precision before the single rounding step.
func (p Policy) Price(principal money.Money, installments int) (Quote, error) {
	if !principal.IsPositive() || installments < p.MinInstallments || installments > p.MaxInstallments {
		return Quote{}, ErrInvalidParameters
	}

	n := decimal.NewFromInt(int64(installments))
	rate := p.BaseRate.Add(p.StepRate.Mul(n))
	factor := decimal.NewFromInt(1).Add(rate.Mul(n).Div(decimal.NewFromInt(100)))
	rawTotal := principal.Decimal().Mul(factor)

	installment := money.Materialize(rawTotal.Div(n), p.Scale, p.Rounding)
	if !installment.IsPositive() {
		// Principal so small the per-installment share rounds to nothing.
		return Quote{}, ErrInvalidParameters
	}
	total := money.Materialize(installment.Decimal().Mul(n), p.Scale, p.Rounding)

	return Quote{
		Principal:          principal,
		Installments:       installments,
		MonthlyRatePercent: rate,
		InstallmentAmount:  installment,
		TotalToPay:         total,
	}, nil
}

// Affordable reports whether a principal fits within a credit limit.
func Affordable(principal, creditLimit money.Money) bool {
	return principal.Cmp(creditLimit) <= 0
}

// PriceWithinLimit gates Price on the credit limit. A principal beyond the
// limit fails before any computation.
func (p Policy) PriceWithinLimit(principal, creditLimit money.Money, installments int) (Quote, error) {
	if !Affordable(principal, creditLimit) {
		return Quote{}, ErrExceedsLimit
	}
	return p.Price(principal, installments)
}
