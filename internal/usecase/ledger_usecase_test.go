package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/ledgerd/internal/domain"
	"github.com/iho/ledgerd/internal/usecase"
	"github.com/iho/ledgerd/internal/usecase/mocks"
)

// flakyAccountRepository fails balance writes while failing is set.
type flakyAccountRepository struct {
	*mocks.MemoryAccountRepository
	failing bool
}

func (r *flakyAccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, number string, balance int64, at time.Time) (int64, error) {
	if r.failing {
		return 0, errors.New("connection reset")
	}
	return r.MemoryAccountRepository.UpdateBalance(ctx, tx, number, balance, at)
}

type ledgerFixture struct {
	store    *mocks.Store
	accounts *flakyAccountRepository
	clock    *mocks.FixedClock
	retries  *usecase.RetryService
	ledger   *usecase.LedgerUseCase
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	store := mocks.NewStore()
	txm := mocks.NewFakeTxManager()
	clock := mocks.NewFixedClock(testNow)
	ids := mocks.NewSequenceIDGenerator()
	accounts := &flakyAccountRepository{MemoryAccountRepository: store.AccountRepo()}

	replayer := usecase.NewReplayUseCase(txm, accounts, store.LedgerRepo(), mocks.PassthroughRetrier{}, clock, nil, zerolog.Nop())
	retries := usecase.NewRetryService(txm, store.RetryRepo(), store.TransactionRepo(), store.OutboxRepo(), nil, ids, clock, nil, zerolog.Nop())
	ledger := usecase.NewLedgerUseCase(
		txm,
		accounts,
		store.LedgerRepo(),
		store.TransactionRepo(),
		store.OutboxRepo(),
		replayer,
		retries,
		ids,
		mocks.NewSequenceAccountNumbers(1000000000),
		clock,
		zerolog.Nop(),
	)
	return &ledgerFixture{store: store, accounts: accounts, clock: clock, retries: retries, ledger: ledger}
}

func (f *ledgerFixture) open(t *testing.T, currency string) *domain.Account {
	t.Helper()
	account, err := f.ledger.CreateAccount(context.Background(), usecase.CreateAccountInput{
		OwnerID:  "user-1",
		Currency: currency,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func TestCreateAccount(t *testing.T) {
	f := newLedgerFixture(t)

	account := f.open(t, "NGN")
	if account.AccountNumber != "1000000000" || account.Balance != 0 {
		t.Fatalf("unexpected account %+v", account)
	}

	if _, err := f.ledger.CreateAccount(context.Background(), usecase.CreateAccountInput{OwnerID: "u", Currency: "XXX"}); !errors.Is(err, domain.ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
	if _, err := f.ledger.CreateAccount(context.Background(), usecase.CreateAccountInput{OwnerID: " ", Currency: "NGN"}); !errors.Is(err, domain.ErrInvalidAccountName) {
		t.Fatalf("expected ErrInvalidAccountName, got %v", err)
	}
}

func TestListAccountsByOwner(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.open(t, "NGN")
	if _, err := f.ledger.CreateAccount(ctx, usecase.CreateAccountInput{OwnerID: "user-2", Currency: "USD"}); err != nil {
		t.Fatalf("create account: %v", err)
	}

	all, err := f.ledger.ListAccounts(ctx, "", 0, 0)
	if err != nil || len(all) != 2 {
		t.Fatalf("list all: %d %v", len(all), err)
	}
	owned, err := f.ledger.ListAccounts(ctx, "user-2", 0, 0)
	if err != nil {
		t.Fatalf("list owned: %v", err)
	}
	if len(owned) != 1 || owned[0].OwnerID != "user-2" {
		t.Fatalf("unexpected owned accounts %+v", owned)
	}
}

func TestListTransactionsHistory(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	account := f.open(t, "NGN")

	var ids []string
	for i, owner := range []string{"user-1", "user-2", "user-1", "user-1"} {
		f.clock.Advance(time.Hour)
		result, err := f.ledger.Credit(ctx, usecase.CreditInput{
			OwnerID:       owner,
			AccountNumber: account.AccountNumber,
			Amount:        int64(10 * (i + 1)),
		})
		if err != nil {
			t.Fatalf("credit %d: %v", i, err)
		}
		ids = append(ids, result.Transaction.ID)
	}

	newest, err := f.ledger.ListTransactions(ctx, domain.TransactionFilter{OwnerID: "user-1"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(newest) != 3 || newest[0].ID != ids[3] || newest[2].ID != ids[0] {
		t.Fatalf("unexpected newest-first history %+v", newest)
	}

	// Window covering the second and third credits, oldest first.
	windowed, err := f.ledger.ListTransactions(ctx, domain.TransactionFilter{
		From:  testNow.Add(2 * time.Hour),
		To:    testNow.Add(3 * time.Hour),
		Order: domain.SortAscending,
	})
	if err != nil {
		t.Fatalf("windowed history: %v", err)
	}
	if len(windowed) != 2 || windowed[0].ID != ids[1] || windowed[1].ID != ids[2] {
		t.Fatalf("unexpected windowed history %+v", windowed)
	}

	paged, err := f.ledger.ListTransactions(ctx, domain.TransactionFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("paged history: %v", err)
	}
	if len(paged) != 2 || paged[0].ID != ids[1] {
		t.Fatalf("unexpected second page %+v", paged)
	}

	if _, err := f.ledger.ListTransactions(ctx, domain.TransactionFilter{Order: "up"}); !errors.Is(err, domain.ErrInvalidSortOrder) {
		t.Fatalf("expected ErrInvalidSortOrder, got %v", err)
	}
}

func TestCreditAndTransferScenario(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	alice := f.open(t, "NGN")
	bob := f.open(t, "NGN")

	credit, err := f.ledger.Credit(ctx, usecase.CreditInput{AccountNumber: alice.AccountNumber, Amount: 500})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if credit.Deferred || credit.Transaction.Status != domain.TransactionStatusCompleted {
		t.Fatalf("unexpected credit result %+v", credit)
	}

	if _, err := f.ledger.Transfer(ctx, usecase.TransferInput{
		SenderAccount:    alice.AccountNumber,
		RecipientAccount: bob.AccountNumber,
		Amount:           100,
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if _, err := f.ledger.Credit(ctx, usecase.CreditInput{AccountNumber: alice.AccountNumber, Amount: 50, Currency: "NGN"}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	got, _ := f.ledger.GetAccount(ctx, alice.AccountNumber)
	if got.Balance != 450 {
		t.Fatalf("expected alice 450, got %d", got.Balance)
	}
	got, _ = f.ledger.GetAccount(ctx, bob.AccountNumber)
	if got.Balance != 100 {
		t.Fatalf("expected bob 100, got %d", got.Balance)
	}

	entries, err := f.ledger.ListEntries(ctx, alice.AccountNumber, 0, 0)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 3 || entries[0].Delta != 50 {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestTransferValidation(t *testing.T) {
	f := newLedgerFixture(t)
	ngn := f.open(t, "NGN")
	usd := f.open(t, "USD")

	tests := []struct {
		name    string
		input   usecase.TransferInput
		wantErr error
	}{
		{
			name:    "same account",
			input:   usecase.TransferInput{SenderAccount: ngn.AccountNumber, RecipientAccount: ngn.AccountNumber, Amount: 1},
			wantErr: domain.ErrSameAccount,
		},
		{
			name:    "currency mismatch",
			input:   usecase.TransferInput{SenderAccount: ngn.AccountNumber, RecipientAccount: usd.AccountNumber, Amount: 1},
			wantErr: domain.ErrCurrencyMismatch,
		},
		{
			name:    "zero amount",
			input:   usecase.TransferInput{SenderAccount: ngn.AccountNumber, RecipientAccount: usd.AccountNumber},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "unknown recipient",
			input:   usecase.TransferInput{SenderAccount: ngn.AccountNumber, RecipientAccount: "5555555555", Amount: 1},
			wantErr: domain.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.ledger.Transfer(context.Background(), tt.input); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreditDefersReplayOnFailure(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	account := f.open(t, "NGN")
	f.accounts.failing = true

	result, err := f.ledger.Credit(ctx, usecase.CreditInput{AccountNumber: account.AccountNumber, Amount: 300})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !result.Deferred || result.RetryID == "" {
		t.Fatalf("expected deferred result, got %+v", result)
	}
	if result.Transaction.Status != domain.TransactionStatusPending {
		t.Fatalf("expected PENDING transaction, got %s", result.Transaction.Status)
	}

	record, ok := f.store.Retry(result.RetryID)
	if !ok || record.WorkerType != domain.WorkerTypeRetryTransactions {
		t.Fatalf("unexpected retry record %+v", record)
	}
	var payload usecase.ReplayPayload
	if err := json.Unmarshal(record.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.TransactionID != result.Transaction.ID || len(payload.AccountNumbers) != 1 {
		t.Fatalf("unexpected payload %+v", payload)
	}

	// The entries are durable even though the balance did not move.
	stored, _ := f.ledger.GetAccount(ctx, account.AccountNumber)
	if stored.Balance != 0 {
		t.Fatalf("expected untouched balance, got %d", stored.Balance)
	}

	f.accounts.failing = false
	if err := f.ledger.CompleteTransaction(ctx, payload.TransactionID, payload.AccountNumbers); err != nil {
		t.Fatalf("complete: %v", err)
	}
	stored, _ = f.ledger.GetAccount(ctx, account.AccountNumber)
	if stored.Balance != 300 {
		t.Fatalf("expected 300 after completion, got %d", stored.Balance)
	}
	txn, _ := f.ledger.GetTransaction(ctx, payload.TransactionID)
	if txn.Status != domain.TransactionStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", txn.Status)
	}

	// A repeated completion settles nothing new and publishes nothing new.
	f.clock.Advance(time.Minute)
	if err := f.ledger.CompleteTransaction(ctx, payload.TransactionID, nil); err != nil {
		t.Fatalf("complete again: %v", err)
	}
	again, _ := f.ledger.GetTransaction(ctx, payload.TransactionID)
	if !again.UpdatedAt.Equal(txn.UpdatedAt) {
		t.Fatalf("completed transaction was rewritten: %v -> %v", txn.UpdatedAt, again.UpdatedAt)
	}
	completed := 0
	for _, e := range f.store.Events() {
		if e.EventType == domain.EventTypeTransactionCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("expected one completed event, got %d", completed)
	}
}

func TestTransferDefersToPeerToPeer(t *testing.T) {
	f := newLedgerFixture(t)
	a := f.open(t, "NGN")
	b := f.open(t, "NGN")
	f.accounts.failing = true

	result, err := f.ledger.Transfer(context.Background(), usecase.TransferInput{
		SenderAccount:    a.AccountNumber,
		RecipientAccount: b.AccountNumber,
		Amount:           10,
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	record, _ := f.store.Retry(result.RetryID)
	if record.WorkerType != domain.WorkerTypePeerToPeer {
		t.Fatalf("expected peer-to-peer, got %s", record.WorkerType)
	}
}
