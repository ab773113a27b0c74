// Package ledger replays an account's append-only transaction log into the
// derived state the dashboards need: a chronological balance / net-worth
// series and a per-category spending breakdown.
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/ledger-engine/internal/models"
	"github.com/Dan9191/ledger-engine/internal/money"
)

// LoanDisbursementCategory marks deposits that originated from a loan payout.
// Such a deposit raised the present debt, so points before it carry less.
const LoanDisbursementCategory = "Empréstimo"

// Point is one step of the reconstructed series.
type Point struct {
	Time     time.Time   `json:"time"`
	Balance  money.Money `json:"balance"`
	NetWorth money.Money `json:"net_worth"`
}

// Result is the full derived state for one account's statement.
type Result struct {
	Series         []Point                `json:"series"`
	CategoryTotals map[string]money.Money `json:"category_totals"`
}

// Reconstructor derives balance and net-worth history from a statement.
// It is pure: it owns no state across calls and never mutates its input,
// so a single value may be shared by any number of goroutines.
type Reconstructor struct {
	// Epsilon is the tolerated absolute gap between a recorded balance_after
	// and the replayed running balance. Zero demands an exact chain.
	Epsilon decimal.Decimal
	// Now stamps the synthetic "today" point for empty statements.
	Now func() time.Time
}

// New returns a Reconstructor demanding an exact balance chain.
func New() *Reconstructor {
	return &Reconstructor{Now: time.Now}
}

// Reconstruct sorts the statement ascending by (timestamp, id), verifies the
// balance chain from an implicit zero opening balance, and derives the
// series and category totals. Input order does not matter and the caller's
// slice is left untouched.
//
// Net worth is derived without joining loan records against the log: the
// debt accumulator is seeded at outstandingDebt minus every in-log loan
// disbursement and raised as each disbursement is replayed. Repayments carry
// other categories and are not folded in, so a statement containing
// settlements overstates past debt; that matches the source behavior and is
// left to the settlement process to reconcile.
//
// An empty statement yields a synthetic two-point series so charts always
// have an origin and a "today" point.
func (r *Reconstructor) Reconstruct(entries []models.TransactionEntry, currentBalance, outstandingDebt money.Money) (Result, error) {
	if len(entries) == 0 {
		return Result{
			Series: []Point{
				{Time: time.Time{}, Balance: money.Zero(), NetWorth: money.Zero()},
				{Time: r.now(), Balance: currentBalance, NetWorth: currentBalance.Sub(outstandingDebt)},
			},
			CategoryTotals: map[string]money.Money{},
		}, nil
	}

	sorted := make([]models.TransactionEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].ID < sorted[j].ID
	})

	if err := r.verifyChain(sorted); err != nil {
		return Result{}, err
	}

	// Seed the accumulator at the debt as it stood before the oldest entry,
	// then raise it again at each disbursement on the way forward.
	historicalDebt := outstandingDebt
	for _, e := range sorted {
		if isDisbursement(e) {
			historicalDebt = historicalDebt.Sub(e.Amount)
		}
	}

	series := make([]Point, 0, len(sorted))
	totals := make(map[string]money.Money)
	for _, e := range sorted {
		if isDisbursement(e) {
			historicalDebt = historicalDebt.Add(e.Amount)
		}
		series = append(series, Point{
			Time:     e.Timestamp,
			Balance:  e.BalanceAfter,
			NetWorth: e.BalanceAfter.Sub(historicalDebt),
		})
		if e.Type == models.Withdraw || e.Type == models.TransferOut {
			totals[e.Category] = totals[e.Category].Add(e.Amount)
		}
	}

	return Result{Series: series, CategoryTotals: totals}, nil
}

// SumFlows totals money in and out over a statement, any order.
func SumFlows(entries []models.TransactionEntry) models.FlowTotals {
	var t models.FlowTotals
	for _, e := range entries {
		if e.Type.IsCredit() {
			t.Income = t.Income.Add(e.Amount)
		} else {
			t.Expense = t.Expense.Add(e.Amount)
		}
	}
	return t
}

// verifyChain checks balance_after[i] == balance_after[i-1] + signed amount
// over the ascending statement, starting from a zero opening balance.
func (r *Reconstructor) verifyChain(sorted []models.TransactionEntry) error {
	running := money.Zero()
	for _, e := range sorted {
		running = running.Add(e.SignedAmount())
		gap := running.Sub(e.BalanceAfter).Abs()
		if gap.Decimal().Cmp(r.Epsilon) > 0 {
			return &InconsistencyError{
				AccountID: e.AccountID,
				EntryID:   e.ID,
				Expected:  running,
				Actual:    e.BalanceAfter,
			}
		}
		// Recorded balances win over the replayed sum within epsilon so a
		// tolerated gap does not compound down the chain.
		running = e.BalanceAfter
	}
	return nil
}

func isDisbursement(e models.TransactionEntry) bool {
	return e.Type == models.Deposit && e.Category == LoanDisbursementCategory
}

func (r *Reconstructor) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
