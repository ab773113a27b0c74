package models

import (
	"time"

	"github.com/Dan9191/ledger-engine/internal/money"
)

// EntryType classifies a ledger entry.
type EntryType string

const (
	Deposit     EntryType = "deposit"
	Withdraw    EntryType = "withdraw"
	TransferIn  EntryType = "transfer_in"
	TransferOut EntryType = "transfer_out"
)

// IsCredit reports whether the entry increases the account balance.
func (t EntryType) IsCredit() bool {
	return t == Deposit || t == TransferIn
}

// TransactionEntry is one immutable row of an account's append-only ledger.
// BalanceAfter carries the balance immediately after the entry was applied,
// so a statement can be replayed without re-deriving balances.
type TransactionEntry struct {
	ID           int64       `json:"id"`
	AccountID    int64       `json:"account_id"`
	Type         EntryType   `json:"type"`
	Category     string      `json:"category"`
	Amount       money.Money `json:"amount"`
	Timestamp    time.Time   `json:"timestamp"`
	BalanceAfter money.Money `json:"balance_after"`
}

// SignedAmount is the amount with the sign the entry applies to the balance.
func (e TransactionEntry) SignedAmount() money.Money {
	if e.Type.IsCredit() {
		return e.Amount
	}
	return e.Amount.Neg()
}
