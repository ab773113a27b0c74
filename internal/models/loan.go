package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/ledger-engine/internal/money"
)

// LoanStatus is the settlement state of a loan. The transition active -> paid
// is performed by the external settlement process, never by this service.
type LoanStatus string

const (
	LoanActive LoanStatus = "active"
	LoanPaid   LoanStatus = "paid"
)

// Loan represents an installment loan priced by the loan engine.
type Loan struct {
	ID                 int64           `json:"id"`
	AccountID          int64           `json:"account_id"`
	Principal          money.Money     `json:"principal"`
	Installments       int             `json:"installments"`
	MonthlyRatePercent decimal.Decimal `json:"monthly_rate_percent"`
	InstallmentAmount  money.Money     `json:"installment_amount"`
	TotalToPay         money.Money     `json:"total_to_pay"`
	Status             LoanStatus      `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
}
