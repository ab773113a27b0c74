package models

import "github.com/Dan9191/ledger-engine/internal/money"

// Account is the read-only account record owned by the external account
// service. Balance is moved only by the transaction commitment paths, never
// by the derivation engines.
type Account struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"user_id"`
	Number      string      `json:"number"`
	Balance     money.Money `json:"balance"`
	CreditLimit money.Money `json:"credit_limit"`
	Score       int         `json:"score"`
}
