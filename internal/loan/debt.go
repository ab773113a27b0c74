package loan

import (
	"github.com/Dan9191/ledger-engine/internal/models"
	"github.com/Dan9191/ledger-engine/internal/money"
)

// TotalDebt sums total_to_pay over active loans; paid loans contribute
// nothing. The sum is order-independent and does not deduplicate: supplying
// the same loan twice is a caller error, not something this hides.
func TotalDebt(loans []models.Loan) money.Money {
	total := money.Zero()
	for _, l := range loans {
		if l.Status == models.LoanActive {
			total = total.Add(l.TotalToPay)
		}
	}
	return total
}
