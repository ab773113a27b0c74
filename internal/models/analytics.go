package models

import "github.com/Dan9191/ledger-engine/internal/money"

// FlowTotals represents total money in and out over a statement.
type FlowTotals struct {
	Income  money.Money `json:"income"`
	Expense money.Money `json:"expense"`
}

// NetWorthSummary represents the current financial position of an account.
type NetWorthSummary struct {
	Balance   money.Money `json:"balance"`
	TotalDebt money.Money `json:"total_debt"`
	NetWorth  money.Money `json:"net_worth"`
}
