package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the materialized balance row of a ledger account.
// Balance is only ever written by the replay engine.
type Account struct {
	ID            string
	AccountNumber string
	OwnerID       string
	Currency      string
	Balance       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Apply returns the balance after folding total into it.
func (a *Account) Apply(total int64) int64 {
	return a.Balance + total
}

// DisplayBalance returns the balance in major currency units.
func (a *Account) DisplayBalance() decimal.Decimal {
	return MinorToMajor(a.Balance, a.Currency)
}
