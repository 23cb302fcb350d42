package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/iho/ledgerd/internal/domain"
	"github.com/iho/ledgerd/internal/usecase"
	"github.com/iho/ledgerd/internal/usecase/mocks"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type replayFixture struct {
	store    *mocks.Store
	txm      *mocks.FakeTxManager
	clock    *mocks.FixedClock
	replayer *usecase.ReplayUseCase
}

func newReplayFixture(t *testing.T) *replayFixture {
	t.Helper()
	store := mocks.NewStore()
	txm := mocks.NewFakeTxManager()
	clock := mocks.NewFixedClock(testNow)
	replayer := usecase.NewReplayUseCase(
		txm,
		store.AccountRepo(),
		store.LedgerRepo(),
		mocks.PassthroughRetrier{},
		clock,
		nil,
		zerolog.Nop(),
	)
	return &replayFixture{store: store, txm: txm, clock: clock, replayer: replayer}
}

func (f *replayFixture) account(t *testing.T, number string, balance int64) {
	t.Helper()
	err := f.store.AccountRepo().Create(context.Background(), &domain.Account{
		ID:            "acc-" + number,
		AccountNumber: number,
		Currency:      "NGN",
		Balance:       balance,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
}

func (f *replayFixture) entry(t *testing.T, id, number string, delta int64) {
	t.Helper()
	err := f.store.LedgerRepo().Append(context.Background(), nil, &domain.LedgerEntry{
		ID:            id,
		AccountNumber: number,
		TransactionID: "txn-" + id,
		Currency:      "NGN",
		Delta:         delta,
	})
	if err != nil {
		t.Fatalf("append entry: %v", err)
	}
}

func TestReplayFoldsUnplayedEntries(t *testing.T) {
	f := newReplayFixture(t)
	f.account(t, "1000000001", 0)
	f.entry(t, "e1", "1000000001", 500)
	f.entry(t, "e2", "1000000001", -100)
	f.entry(t, "e3", "1000000001", 50)

	account, err := f.replayer.Replay(context.Background(), "1000000001")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if account.Balance != 450 {
		t.Fatalf("expected balance 450, got %d", account.Balance)
	}
	if !account.UpdatedAt.Equal(testNow) {
		t.Fatalf("expected updated_at %v, got %v", testNow, account.UpdatedAt)
	}

	for _, e := range f.store.Entries("1000000001") {
		if !e.Played {
			t.Fatalf("entry %s left unplayed", e.ID)
		}
	}

	stored, _ := f.store.AccountRepo().GetByNumber(context.Background(), "1000000001")
	if stored.Balance != 450 {
		t.Fatalf("expected stored balance 450, got %d", stored.Balance)
	}
}

func TestReplayIsIdempotent(t *testing.T) {
	f := newReplayFixture(t)
	f.account(t, "1000000002", 1000)
	f.entry(t, "e1", "1000000002", 250)

	first, err := f.replayer.Replay(context.Background(), "1000000002")
	if err != nil {
		t.Fatalf("first replay: %v", err)
	}
	commits := f.txm.Committed()

	second, err := f.replayer.Replay(context.Background(), "1000000002")
	if err != nil {
		t.Fatalf("second replay: %v", err)
	}

	if first.Balance != 1250 || second.Balance != 1250 {
		t.Fatalf("expected 1250 twice, got %d and %d", first.Balance, second.Balance)
	}
	if f.txm.Committed() != commits {
		t.Fatalf("expected no commit for a no-op replay")
	}
}

func TestReplayCountsLateEntriesOnce(t *testing.T) {
	f := newReplayFixture(t)
	f.account(t, "1000000003", 0)
	f.entry(t, "e1", "1000000003", 100)

	if _, err := f.replayer.Replay(context.Background(), "1000000003"); err != nil {
		t.Fatalf("replay: %v", err)
	}

	f.entry(t, "e2", "1000000003", 40)
	f.entry(t, "e3", "1000000003", -15)

	account, err := f.replayer.Replay(context.Background(), "1000000003")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if account.Balance != 125 {
		t.Fatalf("expected 125, got %d", account.Balance)
	}

	played, _ := f.store.LedgerRepo().SumPlayed(context.Background(), "1000000003")
	if played != account.Balance {
		t.Fatalf("balance %d differs from played sum %d", account.Balance, played)
	}
}

func TestReplayEmptyAccountIsNoop(t *testing.T) {
	f := newReplayFixture(t)
	f.account(t, "1000000004", 77)

	account, err := f.replayer.Replay(context.Background(), "1000000004")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if account.Balance != 77 {
		t.Fatalf("expected 77, got %d", account.Balance)
	}
}

func TestReplayErrors(t *testing.T) {
	tests := []struct {
		name    string
		number  string
		wantErr error
	}{
		{name: "unknown account", number: "9999999999", wantErr: domain.ErrAccountNotFound},
		{name: "malformed number", number: "12ab", wantErr: domain.ErrInvalidAccountNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReplayFixture(t)
			_, err := f.replayer.Replay(context.Background(), tt.number)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestReplayDetectsPartialWrites(t *testing.T) {
	entries := []*domain.LedgerEntry{
		{ID: "e1", AccountNumber: "1000000005", Delta: 10},
		{ID: "e2", AccountNumber: "1000000005", Delta: 20},
	}

	tests := []struct {
		name   string
		setup  func(accounts *mocks.MockAccountRepository, ledger *mocks.MockLedgerRepository)
		commit bool
	}{
		{
			name: "entry already claimed",
			setup: func(accounts *mocks.MockAccountRepository, ledger *mocks.MockLedgerRepository) {
				ledger.EXPECT().MarkPlayed(gomock.Any(), gomock.Any(), []string{"e1", "e2"}, testNow).Return(int64(1), nil)
			},
		},
		{
			name: "balance row missing",
			setup: func(accounts *mocks.MockAccountRepository, ledger *mocks.MockLedgerRepository) {
				ledger.EXPECT().MarkPlayed(gomock.Any(), gomock.Any(), []string{"e1", "e2"}, testNow).Return(int64(2), nil)
				accounts.EXPECT().UpdateBalance(gomock.Any(), gomock.Any(), "1000000005", int64(35), testNow).Return(int64(0), nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			txm := mocks.NewMockTransactionManager(ctrl)
			tx := mocks.NewMockTransaction(ctrl)
			accounts := mocks.NewMockAccountRepository(ctrl)
			ledger := mocks.NewMockLedgerRepository(ctrl)

			txm.EXPECT().Begin(gomock.Any()).Return(tx, nil)
			tx.EXPECT().Rollback(gomock.Any()).Return(nil)
			accounts.EXPECT().GetByNumberForUpdate(gomock.Any(), tx, "1000000005").
				Return(&domain.Account{AccountNumber: "1000000005", Balance: 5}, nil)
			ledger.EXPECT().ListUnplayedForUpdate(gomock.Any(), tx, "1000000005").Return(entries, nil)
			tt.setup(accounts, ledger)

			replayer := usecase.NewReplayUseCase(txm, accounts, ledger, mocks.PassthroughRetrier{},
				mocks.NewFixedClock(testNow), nil, zerolog.Nop())

			_, err := replayer.Replay(context.Background(), "1000000005")
			if !errors.Is(err, domain.ErrReplayFailed) {
				t.Fatalf("expected ErrReplayFailed, got %v", err)
			}
		})
	}
}

type countingRetrier struct {
	attempts int
}

func (r *countingRetrier) Retry(_ context.Context, operation func() error) error {
	var err error
	for i := 0; i < 3; i++ {
		r.attempts++
		if err = operation(); err == nil || !errors.Is(err, domain.ErrReplayFailed) {
			return err
		}
	}
	return err
}

func TestReplayRetriesWholeOperation(t *testing.T) {
	ctrl := gomock.NewController(t)
	txm := mocks.NewMockTransactionManager(ctrl)
	tx := mocks.NewMockTransaction(ctrl)
	accounts := mocks.NewMockAccountRepository(ctrl)
	ledger := mocks.NewMockLedgerRepository(ctrl)

	entries := []*domain.LedgerEntry{{ID: "e1", AccountNumber: "1000000006", Delta: 10}}

	txm.EXPECT().Begin(gomock.Any()).Return(tx, nil).Times(2)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil).Times(2)
	tx.EXPECT().Commit(gomock.Any()).Return(nil)
	accounts.EXPECT().GetByNumberForUpdate(gomock.Any(), tx, "1000000006").
		DoAndReturn(func(context.Context, usecase.Transaction, string) (*domain.Account, error) {
			return &domain.Account{AccountNumber: "1000000006", Balance: 0}, nil
		}).Times(2)
	ledger.EXPECT().ListUnplayedForUpdate(gomock.Any(), tx, "1000000006").Return(entries, nil).Times(2)
	gomock.InOrder(
		ledger.EXPECT().MarkPlayed(gomock.Any(), tx, []string{"e1"}, testNow).Return(int64(0), nil),
		ledger.EXPECT().MarkPlayed(gomock.Any(), tx, []string{"e1"}, testNow).Return(int64(1), nil),
	)
	accounts.EXPECT().UpdateBalance(gomock.Any(), tx, "1000000006", int64(10), testNow).Return(int64(1), nil)

	retrier := &countingRetrier{}
	replayer := usecase.NewReplayUseCase(txm, accounts, ledger, retrier,
		mocks.NewFixedClock(testNow), nil, zerolog.Nop())

	account, err := replayer.Replay(context.Background(), "1000000006")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if account.Balance != 10 {
		t.Fatalf("expected 10, got %d", account.Balance)
	}
	if retrier.attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", retrier.attempts)
	}
}
