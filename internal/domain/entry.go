package domain

import "time"

// LedgerEntry is an immutable signed balance change. Only Played ever changes,
// and only from false to true.
type LedgerEntry struct {
	ID            string
	AccountNumber string
	TransactionID string
	Currency      string
	Delta         int64
	Played        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SumDeltas returns the sum of deltas of entries.
func SumDeltas(entries []*LedgerEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Delta
	}
	return total
}

// EntryIDs returns the identifiers of entries in order.
func EntryIDs(entries []*LedgerEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}
