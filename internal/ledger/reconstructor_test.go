package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/ledger-engine/internal/models"
	"github.com/Dan9191/ledger-engine/internal/money"
)

var day = 24 * time.Hour

func at(d int) time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(d) * day)
}

func entry(id int64, t time.Time, typ models.EntryType, category, amount, after string) models.TransactionEntry {
	return models.TransactionEntry{
		ID:           id,
		AccountID:    1,
		Type:         typ,
		Category:     category,
		Amount:       money.MustParse(amount),
		Timestamp:    t,
		BalanceAfter: money.MustParse(after),
	}
}

func TestReconstructSortsShuffledInput(t *testing.T) {
	// Newest-first, as the external log delivers: the withdrawal happened
	// after the deposit but arrives first.
	entries := []models.TransactionEntry{
		entry(2, at(1), models.Withdraw, "Lazer", "200", "800"),
		entry(1, at(0), models.Deposit, "Depósito", "1000", "1000"),
	}

	result, err := New().Reconstruct(entries, money.MustParse("800"), money.Zero())
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Series) != 2 {
		t.Fatalf("series len=%d want 2", len(result.Series))
	}
	wantBalances := []string{"1000", "800"}
	for i, want := range wantBalances {
		if !result.Series[i].Balance.Equal(money.MustParse(want)) {
			t.Fatalf("series[%d].Balance=%s want %s", i, result.Series[i].Balance, want)
		}
	}
	if len(result.CategoryTotals) != 1 || !result.CategoryTotals["Lazer"].Equal(money.MustParse("200")) {
		t.Fatalf("CategoryTotals=%v want {Lazer: 200}", result.CategoryTotals)
	}
}

func TestReconstructTieBrokenByID(t *testing.T) {
	ts := at(0)
	entries := []models.TransactionEntry{
		entry(2, ts, models.Withdraw, "Contas", "30", "70"),
		entry(1, ts, models.Deposit, "Depósito", "100", "100"),
	}
	result, err := New().Reconstruct(entries, money.MustParse("70"), money.Zero())
	if err != nil {
		t.Fatal(err)
	}
	if !result.Series[0].Balance.Equal(money.MustParse("100")) || !result.Series[1].Balance.Equal(money.MustParse("70")) {
		t.Fatalf("equal timestamps must order by id, got %s then %s",
			result.Series[0].Balance, result.Series[1].Balance)
	}
}

func TestReconstructEmptyStatement(t *testing.T) {
	now := at(10)
	r := &Reconstructor{Now: func() time.Time { return now }}

	result, err := r.Reconstruct(nil, money.Zero(), money.Zero())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Series) != 2 {
		t.Fatalf("series len=%d want 2", len(result.Series))
	}
	for i, p := range result.Series {
		if !p.Balance.IsZero() || !p.NetWorth.IsZero() {
			t.Fatalf("series[%d]=%+v want zero balance and net worth", i, p)
		}
	}
	if !result.Series[1].Time.Equal(now) {
		t.Fatalf("today point at %v want %v", result.Series[1].Time, now)
	}

	// Known balance and debt still produce a two-point chart.
	result, err = r.Reconstruct(nil, money.MustParse("500"), money.MustParse("200"))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Series[1].Balance.Equal(money.MustParse("500")) ||
		!result.Series[1].NetWorth.Equal(money.MustParse("300")) {
		t.Fatalf("today point=%+v want balance 500 net worth 300", result.Series[1])
	}
}

func TestReconstructRetroactiveDebt(t *testing.T) {
	// A loan of 1000 (total to pay 1350) was disbursed mid-statement. Debt
	// at points before the disbursement must be lower by the disbursed
	// amount, not by the total.
	entries := []models.TransactionEntry{
		entry(3, at(2), models.Withdraw, "Lazer", "300", "1200"),
		entry(2, at(1), models.Deposit, LoanDisbursementCategory, "1000", "1500"),
		entry(1, at(0), models.Deposit, "Salário", "500", "500"),
	}
	outstanding := money.MustParse("1350")

	result, err := New().Reconstruct(entries, money.MustParse("1200"), outstanding)
	if err != nil {
		t.Fatal(err)
	}

	wantNetWorth := []string{"150", "150", "-150"}
	for i, want := range wantNetWorth {
		if !result.Series[i].NetWorth.Equal(money.MustParse(want)) {
			t.Fatalf("series[%d].NetWorth=%s want %s", i, result.Series[i].NetWorth, want)
		}
	}
}

func TestReconstructInconsistency(t *testing.T) {
	entries := []models.TransactionEntry{
		entry(1, at(0), models.Deposit, "Depósito", "1000", "1000"),
		entry(2, at(1), models.Withdraw, "Lazer", "200", "790"), // should be 800
	}

	_, err := New().Reconstruct(entries, money.MustParse("790"), money.Zero())
	var inc *InconsistencyError
	if !errors.As(err, &inc) {
		t.Fatalf("want InconsistencyError, got %v", err)
	}
	if inc.AccountID != 1 || inc.EntryID != 2 {
		t.Fatalf("error ids=%d/%d want 1/2", inc.AccountID, inc.EntryID)
	}

	// A sub-epsilon gap is tolerated.
	offByCents := []models.TransactionEntry{
		entry(1, at(0), models.Deposit, "Depósito", "1000", "1000"),
		entry(2, at(1), models.Withdraw, "Lazer", "200", "799.90"),
	}
	r := &Reconstructor{Epsilon: decimal.RequireFromString("0.10")}
	if _, err := r.Reconstruct(offByCents, money.MustParse("799.90"), money.Zero()); err != nil {
		t.Fatalf("epsilon 0.10 should tolerate a 0.10 gap: %v", err)
	}
}

func TestReconstructDoesNotMutateInput(t *testing.T) {
	entries := []models.TransactionEntry{
		entry(2, at(1), models.Withdraw, "Lazer", "200", "800"),
		entry(1, at(0), models.Deposit, "Depósito", "1000", "1000"),
	}
	if _, err := New().Reconstruct(entries, money.MustParse("800"), money.Zero()); err != nil {
		t.Fatal(err)
	}
	if entries[0].ID != 2 || entries[1].ID != 1 {
		t.Fatalf("input slice reordered: %d, %d", entries[0].ID, entries[1].ID)
	}
}

func TestReconstructDeterministic(t *testing.T) {
	a := []models.TransactionEntry{
		entry(1, at(0), models.Deposit, "Depósito", "1000", "1000"),
		entry(2, at(1), models.Withdraw, "Lazer", "200", "800"),
		entry(3, at(2), models.TransferOut, "Contas", "100", "700"),
	}
	b := []models.TransactionEntry{a[2], a[0], a[1]}

	ra, err := New().Reconstruct(a, money.MustParse("700"), money.Zero())
	if err != nil {
		t.Fatal(err)
	}
	rb, err := New().Reconstruct(b, money.MustParse("700"), money.Zero())
	if err != nil {
		t.Fatal(err)
	}

	if len(ra.Series) != len(rb.Series) {
		t.Fatalf("series lengths differ: %d vs %d", len(ra.Series), len(rb.Series))
	}
	for i := range ra.Series {
		if !ra.Series[i].Balance.Equal(rb.Series[i].Balance) ||
			!ra.Series[i].NetWorth.Equal(rb.Series[i].NetWorth) ||
			!ra.Series[i].Time.Equal(rb.Series[i].Time) {
			t.Fatalf("series[%d] differs: %+v vs %+v", i, ra.Series[i], rb.Series[i])
		}
	}
	for category, total := range ra.CategoryTotals {
		if !rb.CategoryTotals[category].Equal(total) {
			t.Fatalf("category %q differs", category)
		}
	}
}

func TestCategoryTotalsOnlyDebits(t *testing.T) {
	entries := []models.TransactionEntry{
		entry(1, at(0), models.Deposit, "Salário", "1000", "1000"),
		entry(2, at(1), models.Withdraw, "Lazer", "50", "950"),
		entry(3, at(2), models.Withdraw, "Lazer", "30", "920"),
		entry(4, at(3), models.TransferOut, "Contas", "20", "900"),
		entry(5, at(4), models.TransferIn, "Transferência", "10", "910"),
	}
	result, err := New().Reconstruct(entries, money.MustParse("910"), money.Zero())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.CategoryTotals) != 2 {
		t.Fatalf("CategoryTotals=%v want exactly Lazer and Contas", result.CategoryTotals)
	}
	if !result.CategoryTotals["Lazer"].Equal(money.MustParse("80")) {
		t.Fatalf("Lazer=%s want 80", result.CategoryTotals["Lazer"])
	}
	if !result.CategoryTotals["Contas"].Equal(money.MustParse("20")) {
		t.Fatalf("Contas=%s want 20", result.CategoryTotals["Contas"])
	}
}

func TestSumFlows(t *testing.T) {
	entries := []models.TransactionEntry{
		entry(1, at(0), models.Deposit, "Salário", "1000", "1000"),
		entry(2, at(1), models.TransferIn, "Transferência", "100", "1100"),
		entry(3, at(2), models.Withdraw, "Lazer", "250", "850"),
	}
	flows := SumFlows(entries)
	if !flows.Income.Equal(money.MustParse("1100")) {
		t.Fatalf("Income=%s want 1100", flows.Income)
	}
	if !flows.Expense.Equal(money.MustParse("250")) {
		t.Fatalf("Expense=%s want 250", flows.Expense)
	}
}
