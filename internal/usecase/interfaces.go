package usecase

import (
	"context"
	"time"

	"github.com/iho/ledgerd/internal/domain"
)

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	GetByNumberForUpdate(ctx context.Context, tx Transaction, accountNumber string) (*domain.Account, error)
	// UpdateBalance returns the number of rows written.
	UpdateBalance(ctx context.Context, tx Transaction, accountNumber string, balance int64, updatedAt time.Time) (int64, error)
	// List pages through accounts; an empty ownerID matches every owner.
	List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Account, error)
}

// LedgerRepository defines data access for ledger entries.
type LedgerRepository interface {
	Append(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error
	ListUnplayedForUpdate(ctx context.Context, tx Transaction, accountNumber string) ([]*domain.LedgerEntry, error)
	// MarkPlayed flips exactly the given entries and returns the number of rows written.
	MarkPlayed(ctx context.Context, tx Transaction, ids []string, updatedAt time.Time) (int64, error)
	ListByAccount(ctx context.Context, accountNumber string, limit, offset int) ([]*domain.LedgerEntry, error)
	SumPlayed(ctx context.Context, accountNumber string) (int64, error)
	AccountsWithUnplayed(ctx context.Context, limit int) ([]string, error)
	// CheckConsistency returns the sum of all balances and the sum of all played deltas.
	CheckConsistency(ctx context.Context) (totalBalance, totalPlayed int64, err error)
	// Snapshot returns an account balance and its played sum as of one read.
	Snapshot(ctx context.Context, accountNumber string) (*AccountSnapshot, error)
}

// AccountSnapshot is a stored balance next to the sum of its played entries.
type AccountSnapshot struct {
	AccountNumber string
	Currency      string
	Balance       int64
	Played        int64
}

// TransactionRepository defines data access for business transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error)
	// UpdateStatus moves a PENDING transaction to status and reports whether
	// it changed. Settled transactions are not touched.
	UpdateStatus(ctx context.Context, tx Transaction, id string, status domain.TransactionStatus, updatedAt time.Time) (bool, error)
}

// RetryRepository defines data access for retry records.
type RetryRepository interface {
	// Upsert inserts the record or refreshes it while it is still pending.
	// It reports false when a terminal record with the same id was kept.
	Upsert(ctx context.Context, tx Transaction, record *domain.RetryRecord) (bool, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.RetryRecord, error)
	Update(ctx context.Context, tx Transaction, record *domain.RetryRecord) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.RetryRecord, error)
	ListDeadLetters(ctx context.Context, limit int) ([]*domain.RetryRecord, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation while it fails with a transient error.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// AccountNumberGenerator generates customer-facing account numbers.
type AccountNumberGenerator interface {
	Next() string
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

// ReplayRecorder observes replay outcomes.
type ReplayRecorder interface {
	ObserveReplay(result string, entries int, duration time.Duration)
}

// RetryRecorder observes retry state transitions.
type RetryRecorder interface {
	ObserveRetry(workerType, outcome string)
}

// ReconciliationRecorder observes reconciliation runs.
type ReconciliationRecorder interface {
	ObserveReconciliation(discrepancies int)
	ObserveSweep(replayed int)
}
