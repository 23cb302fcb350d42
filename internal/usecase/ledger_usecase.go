package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/ledgerd/internal/domain"
)

// LedgerUseCase handles accounts and the operations that write ledger entries.
type LedgerUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	ledgerRepo  LedgerRepository
	txnRepo     TransactionRepository
	outboxRepo  OutboxRepository
	replayer    *ReplayUseCase
	retries     *RetryService
	idGen       IDGenerator
	numberGen   AccountNumberGenerator
	clock       Clock
	logger      zerolog.Logger
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	ledgerRepo LedgerRepository,
	txnRepo TransactionRepository,
	outboxRepo OutboxRepository,
	replayer *ReplayUseCase,
	retries *RetryService,
	idGen IDGenerator,
	numberGen AccountNumberGenerator,
	clock Clock,
	logger zerolog.Logger,
) *LedgerUseCase {
	if clock == nil {
		clock = SystemClock{}
	}
	return &LedgerUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		txnRepo:     txnRepo,
		outboxRepo:  outboxRepo,
		replayer:    replayer,
		retries:     retries,
		idGen:       idGen,
		numberGen:   numberGen,
		clock:       clock,
		logger:      logger,
	}
}

// CreateAccountInput is the input for CreateAccount.
type CreateAccountInput struct {
	OwnerID  string
	Currency string
}

// CreditInput is the input for Credit.
type CreditInput struct {
	OwnerID       string
	AccountNumber string
	Amount        int64
	Currency      string
}

// TransferInput is the input for Transfer.
type TransferInput struct {
	OwnerID          string
	SenderAccount    string
	RecipientAccount string
	Amount           int64
	Currency         string
}

// TransactionResult reports a written transaction. Deferred is set when
// the entries were committed but folding them into balances was handed to
// the retry scheduler.
type TransactionResult struct {
	Transaction *domain.Transaction
	Accounts    []*domain.Account
	Deferred    bool
	RetryID     string
}

// CreateAccount opens an account with a zero balance.
func (uc *LedgerUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if err := domain.ValidateAccountName(input.OwnerID); err != nil {
		return nil, err
	}
	if err := domain.ValidateCurrency(input.Currency); err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	account := &domain.Account{
		ID:            uc.idGen.Generate(),
		AccountNumber: uc.numberGen.Next(),
		OwnerID:       input.OwnerID,
		Currency:      input.Currency,
		Balance:       0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccount retrieves an account by its account number.
func (uc *LedgerUseCase) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	if err := domain.ValidateAccountNumber(accountNumber); err != nil {
		return nil, err
	}
	return uc.accountRepo.GetByNumber(ctx, accountNumber)
}

// ListAccounts lists accounts with pagination. A non-empty ownerID lists
// only that owner's accounts.
func (uc *LedgerUseCase) ListAccounts(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Account, error) {
	limit, offset, err := domain.ValidatePagination(limit, offset)
	if err != nil {
		return nil, err
	}
	return uc.accountRepo.List(ctx, ownerID, limit, offset)
}

// ListEntries lists the ledger entries of an account, newest first.
func (uc *LedgerUseCase) ListEntries(ctx context.Context, accountNumber string, limit, offset int) ([]*domain.LedgerEntry, error) {
	if err := domain.ValidateAccountNumber(accountNumber); err != nil {
		return nil, err
	}
	limit, offset, err := domain.ValidatePagination(limit, offset)
	if err != nil {
		return nil, err
	}
	return uc.ledgerRepo.ListByAccount(ctx, accountNumber, limit, offset)
}

// GetTransaction retrieves a transaction by ID.
func (uc *LedgerUseCase) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return uc.txnRepo.GetByID(ctx, id)
}

// ListTransactions returns the transaction history matching filter,
// newest first unless the filter asks for ascending order.
func (uc *LedgerUseCase) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}
	return uc.txnRepo.List(ctx, filter)
}

// Credit writes a deposit entry for the account and replays it.
func (uc *LedgerUseCase) Credit(ctx context.Context, input CreditInput) (*TransactionResult, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}
	account, err := uc.GetAccount(ctx, input.AccountNumber)
	if err != nil {
		return nil, err
	}
	if input.Currency != "" && input.Currency != account.Currency {
		return nil, domain.ErrCurrencyMismatch
	}

	now := uc.clock.Now()
	txn := &domain.Transaction{
		ID:               uc.idGen.Generate(),
		OwnerID:          input.OwnerID,
		Type:             domain.TransactionTypeDeposit,
		Amount:           input.Amount,
		Currency:         account.Currency,
		RecipientAccount: account.AccountNumber,
		Status:           domain.TransactionStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	entries := []*domain.LedgerEntry{
		uc.newEntry(txn, account.AccountNumber, input.Amount, now),
	}

	if err := uc.write(ctx, txn, entries); err != nil {
		return nil, err
	}
	return uc.settle(ctx, txn, domain.WorkerTypeRetryTransactions)
}

// Transfer writes a debit for the sender and a credit for the recipient
// under one transaction and replays both accounts.
func (uc *LedgerUseCase) Transfer(ctx context.Context, input TransferInput) (*TransactionResult, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}
	if input.SenderAccount == input.RecipientAccount {
		return nil, domain.ErrSameAccount
	}

	sender, err := uc.GetAccount(ctx, input.SenderAccount)
	if err != nil {
		return nil, err
	}
	recipient, err := uc.GetAccount(ctx, input.RecipientAccount)
	if err != nil {
		return nil, err
	}
	if sender.Currency != recipient.Currency {
		return nil, domain.ErrCurrencyMismatch
	}
	if input.Currency != "" && input.Currency != sender.Currency {
		return nil, domain.ErrCurrencyMismatch
	}

	now := uc.clock.Now()
	txn := &domain.Transaction{
		ID:               uc.idGen.Generate(),
		OwnerID:          input.OwnerID,
		Type:             domain.TransactionTypeTransfer,
		Amount:           input.Amount,
		Currency:         sender.Currency,
		SenderAccount:    sender.AccountNumber,
		RecipientAccount: recipient.AccountNumber,
		Status:           domain.TransactionStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	entries := []*domain.LedgerEntry{
		uc.newEntry(txn, sender.AccountNumber, -input.Amount, now),
		uc.newEntry(txn, recipient.AccountNumber, input.Amount, now),
	}

	if err := uc.write(ctx, txn, entries); err != nil {
		return nil, err
	}
	return uc.settle(ctx, txn, domain.WorkerTypePeerToPeer)
}

// CompleteTransaction replays every account of a stored transaction and
// marks it COMPLETED. It is safe to call repeatedly: only the call that
// settles the transaction emits the completed event.
func (uc *LedgerUseCase) CompleteTransaction(ctx context.Context, transactionID string, accountNumbers []string) error {
	if len(accountNumbers) == 0 {
		txn, err := uc.txnRepo.GetByID(ctx, transactionID)
		if err != nil {
			return err
		}
		accountNumbers = txn.AccountNumbers()
	}
	sort.Strings(accountNumbers)
	if _, err := uc.replayer.ReplayMany(ctx, accountNumbers); err != nil {
		return err
	}
	return uc.markCompleted(ctx, transactionID)
}

func (uc *LedgerUseCase) newEntry(txn *domain.Transaction, accountNumber string, delta int64, now time.Time) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:            uc.idGen.Generate(),
		AccountNumber: accountNumber,
		TransactionID: txn.ID,
		Currency:      txn.Currency,
		Delta:         delta,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// write stores the transaction, its entries and a created event atomically.
func (uc *LedgerUseCase) write(ctx context.Context, txn *domain.Transaction, entries []*domain.LedgerEntry) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := uc.txnRepo.Create(ctx, tx, txn); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := uc.ledgerRepo.Append(ctx, tx, entry); err != nil {
			return err
		}
	}

	if uc.outboxRepo != nil {
		payload := domain.TransactionCreatedEvent{
			TransactionID:    txn.ID,
			Type:             string(txn.Type),
			SenderAccount:    txn.SenderAccount,
			RecipientAccount: txn.RecipientAccount,
			Amount:           txn.Amount,
			Currency:         txn.Currency,
		}
		if err := uc.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   txn.ID,
			AggregateType: domain.AggregateTypeTransaction,
			EventType:     domain.EventTypeTransactionCreated,
			Payload:       payload.ToMap(),
			CreatedAt:     txn.CreatedAt,
		}); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// settle replays the touched accounts. When replay fails the entries stay
// unplayed and the transaction is handed to the retry scheduler.
func (uc *LedgerUseCase) settle(ctx context.Context, txn *domain.Transaction, workerType string) (*TransactionResult, error) {
	// Replaying in a fixed order keeps concurrent transfers from deadlocking.
	accountNumbers := txn.AccountNumbers()
	sort.Strings(accountNumbers)

	accounts, err := uc.replayer.ReplayMany(ctx, accountNumbers)
	if err == nil {
		err = uc.markCompleted(ctx, txn.ID)
	}
	if err == nil {
		txn.Status = domain.TransactionStatusCompleted
		return &TransactionResult{Transaction: txn, Accounts: accounts}, nil
	}
	if errors.Is(err, context.Canceled) {
		return nil, err
	}

	payload, merr := json.Marshal(ReplayPayload{
		TransactionID:  txn.ID,
		AccountNumbers: accountNumbers,
	})
	if merr != nil {
		return nil, merr
	}
	record, rerr := uc.retries.RecordFailure(ctx, domain.WorkItem{
		TransactionID: txn.ID,
		WorkerType:    workerType,
		Payload:       payload,
	}, err)
	if rerr != nil {
		return nil, errors.Join(err, rerr)
	}

	uc.logger.Warn().
		Err(err).
		Str("transaction_id", txn.ID).
		Str("retry_id", record.ID).
		Msg("replay deferred to retry scheduler")

	return &TransactionResult{Transaction: txn, Deferred: true, RetryID: record.ID}, nil
}

func (uc *LedgerUseCase) markCompleted(ctx context.Context, transactionID string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := uc.clock.Now()
	changed, err := uc.txnRepo.UpdateStatus(ctx, tx, transactionID, domain.TransactionStatusCompleted, now)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if uc.outboxRepo != nil {
		if err := uc.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   transactionID,
			AggregateType: domain.AggregateTypeTransaction,
			EventType:     domain.EventTypeTransactionCompleted,
			Payload:       map[string]any{"transaction_id": transactionID},
			CreatedAt:     now,
		}); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
