package domain

import (
	"fmt"
	"time"
)

// TransactionType classifies a business operation.
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "DEPOSIT"
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

// TransactionStatus is the lifecycle state of a business operation.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Transaction owns the ledger entries written by a credit or transfer.
type Transaction struct {
	ID               string
	OwnerID          string
	Type             TransactionType
	Amount           int64
	Currency         string
	SenderAccount    string
	RecipientAccount string
	Status           TransactionStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AccountNumbers returns the accounts touched by the transaction.
func (t *Transaction) AccountNumbers() []string {
	var out []string
	if t.SenderAccount != "" {
		out = append(out, t.SenderAccount)
	}
	if t.RecipientAccount != "" && t.RecipientAccount != t.SenderAccount {
		out = append(out, t.RecipientAccount)
	}
	return out
}

// SortOrder orders a history listing by creation time.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// TransactionFilter narrows a transaction history listing. Empty fields
// match everything; From and To are inclusive.
type TransactionFilter struct {
	OwnerID string
	From    time.Time
	To      time.Time
	Order   SortOrder
	Limit   int
	Offset  int
}

// Normalize applies the default order and page bounds and rejects an
// unknown order or an inverted date range.
func (f TransactionFilter) Normalize() (TransactionFilter, error) {
	switch f.Order {
	case "":
		f.Order = SortDescending
	case SortAscending, SortDescending:
	default:
		return f, fmt.Errorf("%w: %q", ErrInvalidSortOrder, f.Order)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return f, fmt.Errorf("%w: date_from is after date_to", ErrInvalidDateRange)
	}
	f.Limit, f.Offset, _ = ValidatePagination(f.Limit, f.Offset)
	return f, nil
}
