package ledger

import (
	"fmt"

	"github.com/Dan9191/ledger-engine/internal/money"
)

// InconsistencyError reports a break in an account's balance chain: the
// balance recorded after an entry does not match the replayed running
// balance. It carries the identifiers needed for offline investigation.
type InconsistencyError struct {
	AccountID int64
	EntryID   int64
	Expected  money.Money
	Actual    money.Money
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("ledger inconsistency: account %d entry %d has balance_after %s, replay expects %s",
		e.AccountID, e.EntryID, e.Actual, e.Expected)
}
