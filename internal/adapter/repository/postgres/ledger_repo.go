package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/ledgerd/internal/domain"
	"github.com/iho/ledgerd/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgerd/internal/usecase"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	queries *generated.Queries
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db generated.DBTX) *LedgerRepository {
	return &LedgerRepository{
		queries: generated.New(db),
	}
}

// Append inserts an unplayed ledger entry.
func (r *LedgerRepository) Append(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	return txQueries(tx).CreateLedgerEntry(ctx, generated.CreateLedgerEntryParams{
		ID:            entry.ID,
		AccountNumber: entry.AccountNumber,
		TransactionID: entry.TransactionID,
		Currency:      entry.Currency,
		Delta:         entry.Delta,
		Played:        entry.Played,
		CreatedAt:     timeToPgTimestamptz(entry.CreatedAt),
		UpdatedAt:     timeToPgTimestamptz(entry.UpdatedAt),
	})
}

// ListUnplayedForUpdate returns and locks the unplayed entries of an account.
func (r *LedgerRepository) ListUnplayedForUpdate(ctx context.Context, tx usecase.Transaction, accountNumber string) ([]*domain.LedgerEntry, error) {
	rows, err := txQueries(tx).ListUnplayedEntriesForUpdate(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	return rowsToEntries(rows), nil
}

// MarkPlayed flips the given entries to played.
func (r *LedgerRepository) MarkPlayed(ctx context.Context, tx usecase.Transaction, ids []string, updatedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	return txQueries(tx).MarkEntriesPlayed(ctx, generated.MarkEntriesPlayedParams{
		Ids:       ids,
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})
}

// ListByAccount lists the entries of an account, newest first.
func (r *LedgerRepository) ListByAccount(ctx context.Context, accountNumber string, limit, offset int) ([]*domain.LedgerEntry, error) {
	rows, err := r.queries.ListEntriesByAccount(ctx, generated.ListEntriesByAccountParams{
		AccountNumber: accountNumber,
		Limit:         int32(limit),
		Offset:        int32(offset),
	})
	if err != nil {
		return nil, err
	}

	return rowsToEntries(rows), nil
}

// SumPlayed returns the sum of played deltas of an account.
func (r *LedgerRepository) SumPlayed(ctx context.Context, accountNumber string) (int64, error) {
	return r.queries.SumPlayedByAccount(ctx, accountNumber)
}

// AccountsWithUnplayed returns accounts holding unplayed entries, oldest backlog first.
func (r *LedgerRepository) AccountsWithUnplayed(ctx context.Context, limit int) ([]string, error) {
	return r.queries.ListAccountsWithUnplayed(ctx, int32(limit))
}

// CheckConsistency returns the sum of all balances and the sum of all played
// deltas, read by one statement so both totals share a snapshot.
func (r *LedgerRepository) CheckConsistency(ctx context.Context) (int64, int64, error) {
	row, err := r.queries.CheckLedgerConsistency(ctx)
	if err != nil {
		return 0, 0, err
	}

	return row.TotalBalance, row.TotalPlayed, nil
}

// Snapshot reads an account balance together with its played sum.
func (r *LedgerRepository) Snapshot(ctx context.Context, accountNumber string) (*usecase.AccountSnapshot, error) {
	row, err := r.queries.GetAccountReconciliation(ctx, accountNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}

	return &usecase.AccountSnapshot{
		AccountNumber: row.AccountNumber,
		Currency:      row.Currency,
		Balance:       row.Balance,
		Played:        row.Played,
	}, nil
}

func rowsToEntries(rows []generated.LedgerEntry) []*domain.LedgerEntry {
	entries := make([]*domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, &domain.LedgerEntry{
			ID:            row.ID,
			AccountNumber: row.AccountNumber,
			TransactionID: row.TransactionID,
			Currency:      row.Currency,
			Delta:         row.Delta,
			Played:        row.Played,
			CreatedAt:     row.CreatedAt.Time,
			UpdatedAt:     row.UpdatedAt.Time,
		})
	}
	return entries
}
