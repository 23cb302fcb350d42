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

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	queries *generated.Queries
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db generated.DBTX) *TransactionRepository {
	return &TransactionRepository{
		queries: generated.New(db),
	}
}

// Create inserts a transaction.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, transaction *domain.Transaction) error {
	return txQueries(tx).CreateTransaction(ctx, generated.CreateTransactionParams{
		ID:               transaction.ID,
		OwnerID:          transaction.OwnerID,
		Type:             string(transaction.Type),
		Amount:           transaction.Amount,
		Currency:         transaction.Currency,
		SenderAccount:    optionalText(transaction.SenderAccount),
		RecipientAccount: transaction.RecipientAccount,
		Status:           string(transaction.Status),
		CreatedAt:        timeToPgTimestamptz(transaction.CreatedAt),
		UpdatedAt:        timeToPgTimestamptz(transaction.UpdatedAt),
	})
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row, err := r.queries.GetTransactionByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}

	return rowToTransaction(row), nil
}

// List returns the transaction history matching filter, ordered by creation time.
func (r *TransactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	params := generated.ListTransactionsParams{
		OwnerID:   optionalText(filter.OwnerID),
		Ascending: filter.Order == domain.SortAscending,
		RowLimit:  int32(filter.Limit),
		RowOffset: int32(filter.Offset),
	}
	if !filter.From.IsZero() {
		params.CreatedFrom = timeToPgTimestamptz(filter.From)
	}
	if !filter.To.IsZero() {
		params.CreatedTo = timeToPgTimestamptz(filter.To)
	}

	rows, err := r.queries.ListTransactions(ctx, params)
	if err != nil {
		return nil, err
	}

	txns := make([]*domain.Transaction, 0, len(rows))
	for _, row := range rows {
		txns = append(txns, rowToTransaction(row))
	}
	return txns, nil
}

// UpdateStatus settles a PENDING transaction and reports whether the row
// changed. A transaction that is already settled is left as is.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.TransactionStatus, updatedAt time.Time) (bool, error) {
	q := txQueries(tx)
	n, err := q.UpdateTransactionStatus(ctx, generated.UpdateTransactionStatusParams{
		ID:        id,
		Status:    string(status),
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	if _, err := q.GetTransactionByID(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrTransactionNotFound
		}
		return false, err
	}
	return false, nil
}

func rowToTransaction(row generated.Transaction) *domain.Transaction {
	return &domain.Transaction{
		ID:               row.ID,
		OwnerID:          row.OwnerID,
		Type:             domain.TransactionType(row.Type),
		Amount:           row.Amount,
		Currency:         row.Currency,
		SenderAccount:    row.SenderAccount.String,
		RecipientAccount: row.RecipientAccount,
		Status:           domain.TransactionStatus(row.Status),
		CreatedAt:        row.CreatedAt.Time,
		UpdatedAt:        row.UpdatedAt.Time,
	}
}
