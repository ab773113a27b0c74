package models

import (
	"time"

	"github.com/Dan9191/ledger-engine/internal/money"
)

// CardStatus is the block/unblock state of a card.
type CardStatus string

const (
	CardActive  CardStatus = "active"
	CardBlocked CardStatus = "blocked"
)

// Card represents a payment card linked to an account. Number and ExpiryDate
// are stored encrypted and decrypted for responses; the CVV ciphertext and
// digest never leave the service.
type Card struct {
	ID         int64       `json:"id"`
	AccountID  int64       `json:"account_id"`
	Number     string      `json:"number"`
	ExpiryDate string      `json:"expiry_date"`
	Limit      money.Money `json:"limit"`
	Status     CardStatus  `json:"status"`
	CVVCipher  string      `json:"-"`
	CVVHash    string      `json:"-"`
	HMAC       string      `json:"-"`
	CreatedAt  time.Time   `json:"created_at"`
}
